package reaction_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/controlplane/internal/adapter/fsm"
	"github.com/neomorfeo/controlplane/internal/adapter/sqlite"
	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
	"github.com/neomorfeo/controlplane/internal/reaction"
)

type fixture struct {
	store    *sqlite.Store
	bus      *app.Bus
	commerce *app.CommerceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Access().CreateBundle(ctx, domain.Bundle{ID: "b-pro", Name: "Pro"}); err != nil {
		t.Fatalf("creating bundle: %v", err)
	}
	if err := store.Tenants().Create(ctx, domain.NewTenant("t-1", "Acme", "acme", "b-pro")); err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	if err := store.Customers().Create(ctx, domain.Customer{
		ID: "c-1", TenantID: "t-1", UserID: "u-1", Name: "Ana", Stage: domain.StageLead,
	}); err != nil {
		t.Fatalf("creating customer: %v", err)
	}

	audit := app.NewAuditTrail(store.Audit(), nil)
	bus := app.NewBus(nil)
	machine := app.NewStateMachine(store.Entities(), store, fsm.New(), audit, bus)

	reaction.NewCustomerLifecycle(store.Customers(), store, audit).Register(bus)
	reaction.NewDeliveryProvisioning(store.Entities(), store, audit, bus).Register(bus)

	return &fixture{
		store:    store,
		bus:      bus,
		commerce: app.NewCommerceService(store.Entities(), machine, bus),
	}
}

func (f *fixture) create(t *testing.T, id, typeName string, status domain.Status, attrs map[string]string) domain.Entity {
	t.Helper()
	e := domain.NewEntity(domain.EntitySpec{
		ID: id, TenantID: "t-1", Domain: "store", TypeName: typeName,
		OwnerID: "u-1", Attributes: attrs, Status: status,
	})
	if err := f.store.Entities().Create(context.Background(), e); err != nil {
		t.Fatalf("creating entity: %v", err)
	}
	return e
}

func (f *fixture) entries(t *testing.T, action string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.store.Audit().List(context.Background(), domain.AuditFilter{Action: action})
	if err != nil {
		t.Fatalf("listing audit: %v", err)
	}
	return entries
}

func TestOrderPaid_SubscriptionPromotesCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "s-1", "Subscription", domain.StatusSuspended, nil)

	res, err := f.commerce.ConfirmPayment(ctx, "s-1")
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if res.Warnings != nil {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}

	customer, _ := f.store.Customers().GetByUser(ctx, "t-1", "u-1")
	if customer.Stage != domain.StageSubscriber {
		t.Errorf("stage = %q, want subscriber", customer.Stage)
	}

	entries := f.entries(t, domain.ActionCustomerLifecycleUpdated)
	if len(entries) != 1 {
		t.Fatalf("got %d lifecycle entries, want 1", len(entries))
	}
	if entries[0].Resource != "crm.Client:c-1" {
		t.Errorf("resource = %q", entries[0].Resource)
	}
	if entries[0].Payload["old_status"] != "lead" || entries[0].Payload["new_status"] != "subscriber" {
		t.Errorf("payload = %v", entries[0].Payload)
	}
}

func TestOrderPaid_OrderActivatesButNeverDemotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "o-1", "Order", domain.StatusPending, nil)
	if _, err := f.commerce.ConfirmPayment(ctx, "o-1"); err != nil {
		t.Fatalf("ConfirmPayment(o-1): %v", err)
	}
	customer, _ := f.store.Customers().GetByUser(ctx, "t-1", "u-1")
	if customer.Stage != domain.StageActive {
		t.Fatalf("stage = %q, want active", customer.Stage)
	}

	f.create(t, "s-1", "Subscription", domain.StatusSuspended, nil)
	if _, err := f.commerce.ConfirmPayment(ctx, "s-1"); err != nil {
		t.Fatalf("ConfirmPayment(s-1): %v", err)
	}
	f.create(t, "o-2", "Order", domain.StatusPending, nil)
	if _, err := f.commerce.ConfirmPayment(ctx, "o-2"); err != nil {
		t.Fatalf("ConfirmPayment(o-2): %v", err)
	}

	customer, _ = f.store.Customers().GetByUser(ctx, "t-1", "u-1")
	if customer.Stage != domain.StageSubscriber {
		t.Errorf("stage = %q, want subscriber kept", customer.Stage)
	}
	if n := len(f.entries(t, domain.ActionCustomerLifecycleUpdated)); n != 2 {
		t.Errorf("got %d lifecycle entries, want 2", n)
	}
}

func TestOrderPaid_ServiceOrderCreatesObligation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created []domain.ObligationCreated
	f.bus.Subscribe(domain.EventObligationCreated, func(_ context.Context, ev domain.Event) error {
		created = append(created, ev.(domain.ObligationCreated))
		return nil
	})

	f.create(t, "o-1", "Order", domain.StatusPending, map[string]string{reaction.ServiceAttribute: "managed-soc"})
	if _, err := f.commerce.ConfirmPayment(ctx, "o-1"); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("got %d obligation_created events, want 1", len(created))
	}
	obligation := created[0].Obligation
	if created[0].SourceOrder.ID() != "o-1" {
		t.Errorf("source order = %q, want o-1", created[0].SourceOrder.ID())
	}
	if obligation.Kind() != domain.KindService || obligation.Status() != domain.StatusActive {
		t.Errorf("obligation = %s kind %s", obligation, obligation.Kind())
	}

	stored, err := f.store.Entities().Get(ctx, obligation.ID())
	if err != nil {
		t.Fatalf("obligation not persisted: %v", err)
	}
	if !stored.ServiceObligation() || stored.Attribute(reaction.ServiceAttribute) != "managed-soc" {
		t.Errorf("stored obligation = %s attrs %v", stored, stored.Attributes())
	}

	entries := f.entries(t, domain.ActionDeliveryObligationCreated)
	if len(entries) != 1 || entries[0].Payload["order_id"] != "o-1" {
		t.Errorf("obligation entries = %+v", entries)
	}
}

func TestOrderPaid_PlainOrderCreatesNoObligation(t *testing.T) {
	f := newFixture(t)
	f.create(t, "o-1", "Order", domain.StatusPending, nil)

	if _, err := f.commerce.ConfirmPayment(context.Background(), "o-1"); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if n := len(f.entries(t, domain.ActionDeliveryObligationCreated)); n != 0 {
		t.Errorf("got %d obligation entries, want 0", n)
	}
}

func TestCustomerLifecycle_UnknownCustomerIgnored(t *testing.T) {
	f := newFixture(t)
	audit := app.NewAuditTrail(f.store.Audit(), nil)
	lifecycle := reaction.NewCustomerLifecycle(f.store.Customers(), f.store, audit)

	order := domain.NewEntity(domain.EntitySpec{
		ID: "o-9", TenantID: "t-1", Domain: "store", TypeName: "Order", OwnerID: "u-stranger",
	})
	if err := lifecycle.HandleOrderPaid(context.Background(), domain.OrderPaid{Order: order}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := lifecycle.HandleOrderPaid(context.Background(), domain.LifecycleTransition{}); err != nil {
		t.Errorf("other events should be ignored: %v", err)
	}
}

func TestDeliveryProvisioning_FailureReportedAsWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An order whose tenant does not exist cannot own an obligation.
	order := domain.NewEntity(domain.EntitySpec{
		ID: "o-x", TenantID: "t-missing", Domain: "store", TypeName: "Order",
		Attributes: map[string]string{reaction.ServiceAttribute: "backup"}, Status: domain.StatusPaid,
	})

	err := f.bus.Publish(ctx, domain.OrderPaid{Order: order})
	var dispatchErr *domain.DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if n := len(f.entries(t, domain.ActionDeliveryObligationCreated)); n != 0 {
		t.Errorf("failed obligation left %d audit entries", n)
	}
}
