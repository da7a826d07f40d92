package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/controlplane/internal/domain"
)

const tracerName = "github.com/neomorfeo/controlplane/internal/adapter/otel"

// recordError marks the span as failed. A nil error is a no-op.
func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TracingEntityRepository wraps a domain.EntityRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingEntityRepository struct {
	next   domain.EntityRepository
	tracer trace.Tracer
}

var _ domain.EntityRepository = (*TracingEntityRepository)(nil)

// NewTracingEntityRepository creates a tracing decorator around the given repository.
func NewTracingEntityRepository(next domain.EntityRepository) *TracingEntityRepository {
	return &TracingEntityRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingEntityRepository) Create(ctx context.Context, entity domain.Entity) error {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.Create",
		trace.WithAttributes(
			attribute.String("entity.resource", entity.Resource()),
			attribute.String("entity.kind", string(entity.Kind())),
			attribute.String("tenant.id", entity.TenantID()),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, entity)
	recordError(span, err)
	return err
}

func (r *TracingEntityRepository) Get(ctx context.Context, id string) (domain.Entity, error) {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.Get",
		trace.WithAttributes(attribute.String("entity.id", id)),
	)
	defer span.End()

	entity, err := r.next.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return entity, err
	}
	span.SetAttributes(
		attribute.String("entity.status", string(entity.Status())),
		attribute.Int("entity.version", entity.Version()),
	)
	return entity, nil
}

func (r *TracingEntityRepository) SwapStatus(ctx context.Context, id string, from domain.Status, version int, next domain.Status, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "EntityRepository.SwapStatus",
		trace.WithAttributes(
			attribute.String("entity.id", id),
			attribute.String("transition.from", string(from)),
			attribute.String("transition.to", string(next)),
			attribute.Int("entity.version", version),
		),
	)
	defer span.End()

	err := r.next.SwapStatus(ctx, id, from, version, next, at)
	recordError(span, err)
	return err
}

// TracingAuditStore wraps a domain.AuditStore with OpenTelemetry tracing.
type TracingAuditStore struct {
	next   domain.AuditStore
	tracer trace.Tracer
}

var _ domain.AuditStore = (*TracingAuditStore)(nil)

func NewTracingAuditStore(next domain.AuditStore) *TracingAuditStore {
	return &TracingAuditStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingAuditStore) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	ctx, span := s.tracer.Start(ctx, "AuditStore.Append",
		trace.WithAttributes(
			attribute.String("audit.action", entry.Action),
			attribute.String("audit.resource", entry.Resource),
		),
	)
	defer span.End()

	stored, err := s.next.Append(ctx, entry)
	if err != nil {
		recordError(span, err)
		return stored, err
	}
	span.SetAttributes(attribute.Int64("audit.seq", stored.Seq))
	return stored, nil
}

func (s *TracingAuditStore) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	ctx, span := s.tracer.Start(ctx, "AuditStore.List",
		trace.WithAttributes(
			attribute.String("audit.filter.tenant_id", filter.TenantID),
			attribute.String("audit.filter.action", filter.Action),
			attribute.Int("audit.filter.limit", filter.Limit),
		),
	)
	defer span.End()

	entries, err := s.next.List(ctx, filter)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("result.count", len(entries)))
	return entries, nil
}
