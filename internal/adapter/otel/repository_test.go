package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/controlplane/internal/adapter/otel"
	"github.com/neomorfeo/controlplane/internal/domain"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

type mockEntities struct {
	entities map[string]domain.Entity
	swapErr  error
}

func newMockEntities(list ...domain.Entity) *mockEntities {
	m := &mockEntities{entities: make(map[string]domain.Entity)}
	for _, e := range list {
		m.entities[e.ID()] = e
	}
	return m
}

func (m *mockEntities) Create(_ context.Context, e domain.Entity) error {
	m.entities[e.ID()] = e
	return nil
}

func (m *mockEntities) Get(_ context.Context, id string) (domain.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return domain.Entity{}, domain.ErrEntityNotFound
	}
	return e, nil
}

func (m *mockEntities) SwapStatus(_ context.Context, _ string, _ domain.Status, _ int, _ domain.Status, _ time.Time) error {
	return m.swapErr
}

type mockAudit struct {
	entries []domain.AuditEntry
}

func (m *mockAudit) Append(_ context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	e.Seq = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *mockAudit) List(_ context.Context, _ domain.AuditFilter) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

func order(id string, status domain.Status) domain.Entity {
	return domain.NewEntity(domain.EntitySpec{
		ID:       id,
		TenantID: "t-1",
		Domain:   "store",
		TypeName: "Order",
		Status:   status,
		Version:  3,
	})
}

func TestTracingEntityRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingEntityRepository(newMockEntities())

	if err := repo.Create(context.Background(), order("o-1", domain.StatusPending)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EntityRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EntityRepository.Create")
	}
	assertAttribute(t, spans[0], "entity.resource", "store.Order:o-1")
	assertAttribute(t, spans[0], "entity.kind", "ORDER")
	assertAttribute(t, spans[0], "tenant.id", "t-1")
}

func TestTracingEntityRepository_Get_RecordsStatus(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingEntityRepository(newMockEntities(order("o-1", domain.StatusPaid)))

	got, err := repo.Get(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status() != domain.StatusPaid {
		t.Errorf("Status = %q, want %q", got.Status(), domain.StatusPaid)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "entity.status", "paid")
	assertAttribute(t, spans[0], "entity.version", "3")
}

func TestTracingEntityRepository_Get_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingEntityRepository(newMockEntities())

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingEntityRepository_SwapStatus_RecordsConflict(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockEntities()
	inner.swapErr = domain.ErrConcurrentTransition
	repo := adapter.NewTracingEntityRepository(inner)

	err := repo.SwapStatus(context.Background(), "o-1", domain.StatusPending, 2, domain.StatusPaid, time.Now())
	if !errors.Is(err, domain.ErrConcurrentTransition) {
		t.Fatalf("expected ErrConcurrentTransition, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "transition.from", "pending")
	assertAttribute(t, spans[0], "transition.to", "paid")
	assertAttribute(t, spans[0], "entity.version", "2")
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

func TestTracingAuditStore_Append_RecordsSeq(t *testing.T) {
	exporter := setupTestTracer(t)
	store := adapter.NewTracingAuditStore(&mockAudit{})

	_, err := store.Append(context.Background(), domain.AuditEntry{
		Action:   domain.ActionTenantProvisioned,
		Resource: "tenants.Tenant:t-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "audit.action", "TENANT_PROVISIONED")
	assertAttribute(t, spans[0], "audit.seq", "1")
}

func TestTracingAuditStore_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockAudit{entries: []domain.AuditEntry{{ID: "a"}, {ID: "b"}}}
	store := adapter.NewTracingAuditStore(inner)

	entries, err := store.List(context.Background(), domain.AuditFilter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
