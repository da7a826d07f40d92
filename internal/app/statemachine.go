package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TransitionResult describes a committed status change. Warnings holds the
// aggregated subscriber failures of the lifecycle_transition event, if any.
// Unchanged is set when Settle found the entity already at its target; nothing
// was written or published.
type TransitionResult struct {
	Entity    domain.Entity
	From      domain.Status
	To        domain.Status
	Entry     domain.AuditEntry
	Warnings  error
	Unchanged bool
}

// StateMachineOption configures a StateMachine.
type StateMachineOption func(*StateMachine)

// WithUngovernedKinds lets kinds without a transition table move to any
// non-empty status. Off by default.
func WithUngovernedKinds(allow bool) StateMachineOption {
	return func(m *StateMachine) { m.allowUngoverned = allow }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) StateMachineOption {
	return func(m *StateMachine) { m.now = now }
}

// StateMachine is the only code path that changes an entity's status.
type StateMachine struct {
	entities  domain.EntityRepository
	tx        domain.TxManager
	validator domain.TransitionValidator
	audit     *AuditTrail
	publisher domain.EventPublisher

	allowUngoverned bool
	now             func() time.Time
}

func NewStateMachine(
	entities domain.EntityRepository,
	tx domain.TxManager,
	validator domain.TransitionValidator,
	audit *AuditTrail,
	publisher domain.EventPublisher,
	opts ...StateMachineOption,
) *StateMachine {
	m := &StateMachine{
		entities:  entities,
		tx:        tx,
		validator: validator,
		audit:     audit,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transition moves entity to next. The status read, the compare-and-swap write
// and the <KIND>_STATE_TRANSITION audit entry share one transaction; if any of
// them fails nothing is written. lifecycle_transition is published after commit.
//
// Illegal edges return *domain.TransitionError. A concurrent writer that won
// the race yields domain.ErrConcurrentTransition.
func (m *StateMachine) Transition(ctx context.Context, entity domain.Entity, next domain.Status, actor domain.Actor, reason string) (TransitionResult, error) {
	return m.transition(ctx, entity, next, actor, reason, false)
}

// Settle is Transition for at-least-once callers such as payment webhooks: an
// entity whose stored status already equals next is returned with Unchanged
// set. The check uses the read taken inside the transaction, so a replay that
// loses the race to its twin still succeeds.
func (m *StateMachine) Settle(ctx context.Context, entity domain.Entity, next domain.Status, actor domain.Actor, reason string) (TransitionResult, error) {
	return m.transition(ctx, entity, next, actor, reason, true)
}

func (m *StateMachine) transition(ctx context.Context, entity domain.Entity, next domain.Status, actor domain.Actor, reason string, settle bool) (TransitionResult, error) {
	var res TransitionResult

	err := m.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := m.entities.Get(ctx, entity.ID())
		if err != nil {
			return err
		}

		if settle && current.Status() == next {
			res = TransitionResult{Entity: current, From: next, To: next, Unchanged: true}
			return nil
		}

		kind := current.Kind()
		if err := m.validate(ctx, kind, current.Status(), next); err != nil {
			return err
		}

		if err := m.entities.SwapStatus(ctx, current.ID(), current.Status(), current.Version(), next, m.now()); err != nil {
			return err
		}

		tenantID := current.TenantID()
		entry, err := m.audit.Log(ctx, domain.AuditRecord{
			Actor:    &actor,
			TenantID: &tenantID,
			Action:   kind.AuditAction(),
			Resource: current.Resource(),
			Payload: map[string]any{
				"old":    string(current.Status()),
				"new":    string(next),
				"actor":  actor.Label(),
				"reason": reason,
			},
		})
		if err != nil {
			return fmt.Errorf("auditing transition: %w", err)
		}

		updated, err := m.entities.Get(ctx, current.ID())
		if err != nil {
			return err
		}

		res = TransitionResult{Entity: updated, From: current.Status(), To: next, Entry: entry}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}
	if res.Unchanged {
		return res, nil
	}

	rc := domain.RequestFrom(ctx)
	rc.Actor = actor
	res.Warnings = m.publisher.Publish(ctx, domain.LifecycleTransition{
		Entity:    res.Entity,
		OldStatus: res.From,
		NewStatus: res.To,
		Request:   rc,
	})

	return res, nil
}

func (m *StateMachine) validate(ctx context.Context, kind domain.Kind, from, to domain.Status) error {
	err := m.validator.Validate(ctx, kind, from, to)

	var unknown *domain.UnknownKindError
	if errors.As(err, &unknown) && m.allowUngoverned {
		if to == "" {
			return &domain.TransitionError{Kind: kind, From: from, To: to}
		}
		return nil
	}
	return err
}
