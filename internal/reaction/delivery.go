package reaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// ServiceAttribute marks an order line that must be delivered as a service.
const ServiceAttribute = "service"

// DeliveryProvisioning opens a service obligation for every paid order that
// sells a service, then announces it with obligation_created.
type DeliveryProvisioning struct {
	entities  domain.EntityRepository
	tx        domain.TxManager
	audit     *app.AuditTrail
	publisher domain.EventPublisher
}

func NewDeliveryProvisioning(entities domain.EntityRepository, tx domain.TxManager, audit *app.AuditTrail, publisher domain.EventPublisher) *DeliveryProvisioning {
	return &DeliveryProvisioning{entities: entities, tx: tx, audit: audit, publisher: publisher}
}

// Register subscribes the reaction to order_paid.
func (d *DeliveryProvisioning) Register(bus Subscriber) {
	bus.Subscribe(domain.EventOrderPaid, d.HandleOrderPaid)
}

// HandleOrderPaid creates the obligation and its DELIVERY_OBLIGATION_CREATED
// entry in one transaction.
func (d *DeliveryProvisioning) HandleOrderPaid(ctx context.Context, ev domain.Event) error {
	paid, ok := ev.(domain.OrderPaid)
	if !ok || paid.Order.Kind() != domain.KindOrder {
		return nil
	}
	service := paid.Order.Attribute(ServiceAttribute)
	if service == "" {
		return nil
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("generating obligation id: %w", err)
	}

	obligation := domain.NewEntity(domain.EntitySpec{
		ID:                id.String(),
		TenantID:          paid.Order.TenantID(),
		Domain:            "erp",
		TypeName:          "InternalProject",
		ServiceObligation: true,
		OwnerID:           paid.Order.OwnerID(),
		Attributes: map[string]string{
			ServiceAttribute: service,
			"source_order":   paid.Order.ID(),
		},
		Status:  domain.StatusActive,
		Version: 1,
	})

	err = d.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := d.entities.Create(ctx, obligation); err != nil {
			return err
		}
		tenantID := obligation.TenantID()
		_, err := d.audit.Log(ctx, domain.AuditRecord{
			TenantID: &tenantID,
			Action:   domain.ActionDeliveryObligationCreated,
			Resource: obligation.Resource(),
			Payload:  map[string]any{"order_id": paid.Order.ID()},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("creating delivery obligation for %s: %w", paid.Order.Label(), err)
	}

	return d.publisher.Publish(ctx, domain.ObligationCreated{
		Obligation:  obligation,
		SourceOrder: paid.Order,
		Request:     paid.Request,
	})
}
