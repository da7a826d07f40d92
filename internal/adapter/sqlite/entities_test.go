package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/controlplane/internal/adapter/sqlite"
	"github.com/neomorfeo/controlplane/internal/domain"
)

func mustCreateOrder(t *testing.T, store *sqlite.Store, id string) domain.Entity {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Tenants().GetByID(ctx, "t-1"); errors.Is(err, domain.ErrTenantNotFound) {
		mustCreate(t, store.Tenants(), domain.NewTenant("t-1", "Acme", "acme", "b-pro"))
	}
	order := domain.NewEntity(domain.EntitySpec{
		ID:         id,
		TenantID:   "t-1",
		Domain:     "store",
		TypeName:   "Order",
		OwnerID:    "u-1",
		Attributes: map[string]string{"service": "managed-soc"},
		Status:     domain.StatusPending,
	})
	if err := store.Entities().Create(ctx, order); err != nil {
		t.Fatalf("creating order: %v", err)
	}
	return order
}

func TestEntity_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	mustCreateOrder(t, store, "o-1")

	got, err := store.Entities().Get(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status() != domain.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status())
	}
	if got.Version() != 1 {
		t.Errorf("Version = %d, want 1", got.Version())
	}
	if got.Attribute("service") != "managed-soc" {
		t.Errorf("service attribute = %q", got.Attribute("service"))
	}
	if got.OwnerID() != "u-1" {
		t.Errorf("OwnerID = %q, want u-1", got.OwnerID())
	}
	if got.Kind() != domain.KindOrder {
		t.Errorf("Kind = %q, want ORDER", got.Kind())
	}
}

func TestEntity_GetNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Entities().Get(context.Background(), "missing"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestEntity_CreateRejectsUndeclaredStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store.Tenants(), domain.NewTenant("t-1", "Acme", "acme", "b-pro"))

	order := domain.NewEntity(domain.EntitySpec{
		ID:       "o-1",
		TenantID: "t-1",
		Domain:   "store",
		TypeName: "Order",
		Status:   "shipped",
	})
	err := store.Entities().Create(ctx, order)

	var statusErr *domain.InvalidStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Create error = %v, want InvalidStatusError", err)
	}
	if statusErr.Kind != domain.KindOrder || statusErr.Status != "shipped" {
		t.Errorf("InvalidStatusError = %+v", statusErr)
	}
	if _, err := store.Entities().Get(ctx, "o-1"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Errorf("rejected entity was stored: %v", err)
	}
}

func TestSwapStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateOrder(t, store, "o-1")

	if err := store.Entities().SwapStatus(ctx, "o-1", domain.StatusPending, 1, domain.StatusPaid, time.Now()); err != nil {
		t.Fatalf("SwapStatus failed: %v", err)
	}

	got, _ := store.Entities().Get(ctx, "o-1")
	if got.Status() != domain.StatusPaid {
		t.Errorf("Status = %q, want paid", got.Status())
	}
	if got.Version() != 2 {
		t.Errorf("Version = %d, want 2", got.Version())
	}
}

func TestSwapStatus_StaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateOrder(t, store, "o-1")

	if err := store.Entities().SwapStatus(ctx, "o-1", domain.StatusPending, 1, domain.StatusPaid, time.Now()); err != nil {
		t.Fatalf("first SwapStatus failed: %v", err)
	}

	// A second writer that read the same row loses.
	err := store.Entities().SwapStatus(ctx, "o-1", domain.StatusPending, 1, domain.StatusFailed, time.Now())
	if !errors.Is(err, domain.ErrConcurrentTransition) {
		t.Errorf("expected ErrConcurrentTransition, got %v", err)
	}

	got, _ := store.Entities().Get(ctx, "o-1")
	if got.Status() != domain.StatusPaid {
		t.Errorf("Status = %q, want paid", got.Status())
	}
}

func TestCustomers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store.Tenants(), domain.NewTenant("t-1", "Acme", "acme", "b-pro"))

	c := domain.Customer{ID: "c-1", TenantID: "t-1", UserID: "u-1", Name: "Ana", Stage: domain.StageLead}
	if err := store.Customers().Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Customers().UpdateStage(ctx, "c-1", domain.StageSubscriber); err != nil {
		t.Fatalf("UpdateStage failed: %v", err)
	}

	got, err := store.Customers().GetByUser(ctx, "t-1", "u-1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if got.Stage != domain.StageSubscriber {
		t.Errorf("Stage = %q, want subscriber", got.Stage)
	}

	if _, err := store.Customers().GetByUser(ctx, "t-1", "u-2"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
	if err := store.Customers().UpdateStage(ctx, "missing", domain.StageActive); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}
