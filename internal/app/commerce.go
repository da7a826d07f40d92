package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// CommerceService turns payment-gateway notifications into transitions and
// order_paid events. It knows nothing about the domains that react to them.
type CommerceService struct {
	entities  domain.EntityRepository
	machine   *StateMachine
	publisher domain.EventPublisher
}

func NewCommerceService(entities domain.EntityRepository, machine *StateMachine, publisher domain.EventPublisher) *CommerceService {
	return &CommerceService{entities: entities, machine: machine, publisher: publisher}
}

// ConfirmPayment records a successful payment. Orders move to paid and
// subscriptions to active, then order_paid is published. A replayed
// notification for an entity already in its paid state changes nothing and
// publishes nothing.
func (s *CommerceService) ConfirmPayment(ctx context.Context, entityID string) (TransitionResult, error) {
	entity, err := s.entities.Get(ctx, entityID)
	if err != nil {
		return TransitionResult{}, err
	}

	var target domain.Status
	switch {
	case entity.Kind() == domain.KindOrder:
		target = domain.StatusPaid
	case entity.TypeName() == "Subscription":
		target = domain.StatusActive
	default:
		return TransitionResult{}, fmt.Errorf("%s: %w", entity.Label(), domain.ErrNotPayable)
	}

	res, err := s.machine.Settle(ctx, entity, target, gatewayActor(ctx), "payment confirmed")
	if err != nil || res.Unchanged {
		return res, err
	}

	rc := domain.RequestFrom(ctx)
	if err := s.publisher.Publish(ctx, domain.OrderPaid{Order: res.Entity, Request: rc}); err != nil {
		res.Warnings = errors.Join(res.Warnings, err)
	}
	return res, nil
}

// SyncSubscription mirrors the gateway's subscription status: "active" keeps
// or restores active, "canceled" completes, anything else suspends.
func (s *CommerceService) SyncSubscription(ctx context.Context, entityID, externalStatus string) (TransitionResult, error) {
	entity, err := s.entities.Get(ctx, entityID)
	if err != nil {
		return TransitionResult{}, err
	}
	if entity.Kind() != domain.KindService {
		return TransitionResult{}, fmt.Errorf("%s: %w", entity.Label(), domain.ErrNotPayable)
	}

	return s.machine.Settle(ctx, entity, subscriptionStatus(externalStatus), gatewayActor(ctx), "gateway status "+externalStatus)
}

func subscriptionStatus(external string) domain.Status {
	switch external {
	case "active":
		return domain.StatusActive
	case "canceled":
		return domain.StatusCompleted
	default:
		return domain.StatusSuspended
	}
}

// gatewayActor is the signed-in caller, or the system actor for webhooks.
func gatewayActor(ctx context.Context) domain.Actor {
	if actor := domain.RequestFrom(ctx).Actor; actor.Authenticated() {
		return actor
	}
	return domain.SystemActor
}
