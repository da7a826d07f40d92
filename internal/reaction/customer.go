// Package reaction holds the cross-domain subscribers of the event bus. Each
// reaction registers itself; publishers never reference them.
package reaction

import (
	"context"
	"errors"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// Subscriber is the registration side of the event bus.
type Subscriber interface {
	Subscribe(name domain.EventName, h domain.Handler)
}

// CustomerLifecycle promotes the paying customer's CRM stage: subscriptions
// make a subscriber, one-off orders an active customer.
type CustomerLifecycle struct {
	customers domain.CustomerRepository
	tx        domain.TxManager
	audit     *app.AuditTrail
}

func NewCustomerLifecycle(customers domain.CustomerRepository, tx domain.TxManager, audit *app.AuditTrail) *CustomerLifecycle {
	return &CustomerLifecycle{customers: customers, tx: tx, audit: audit}
}

// Register subscribes the reaction to order_paid.
func (c *CustomerLifecycle) Register(bus Subscriber) {
	bus.Subscribe(domain.EventOrderPaid, c.HandleOrderPaid)
}

// HandleOrderPaid updates the owner's customer record. Orders without an owner
// or owners without a customer record are ignored. A subscriber is never
// demoted by a later one-off order.
func (c *CustomerLifecycle) HandleOrderPaid(ctx context.Context, ev domain.Event) error {
	paid, ok := ev.(domain.OrderPaid)
	if !ok || paid.Order.OwnerID() == "" {
		return nil
	}

	stage := domain.StageActive
	if paid.Order.TypeName() == "Subscription" {
		stage = domain.StageSubscriber
	}

	return c.tx.RunInTx(ctx, func(ctx context.Context) error {
		customer, err := c.customers.GetByUser(ctx, paid.Order.TenantID(), paid.Order.OwnerID())
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if customer.Stage == stage || (customer.Stage == domain.StageSubscriber && stage == domain.StageActive) {
			return nil
		}

		if err := c.customers.UpdateStage(ctx, customer.ID, stage); err != nil {
			return err
		}

		tenantID := customer.TenantID
		_, err = c.audit.Log(ctx, domain.AuditRecord{
			TenantID: &tenantID,
			Action:   domain.ActionCustomerLifecycleUpdated,
			Resource: customer.Resource(),
			Payload: map[string]any{
				"old_status": string(customer.Stage),
				"new_status": string(stage),
			},
		})
		return err
	})
}
