package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing.
// Handler spans started by subscribers become children of the publish span.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer
}

var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, ev domain.Event) error {
	summary := domain.Summarize(ev)
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithAttributes(
			attribute.String("event.name", summary.Event),
			attribute.String("event.resource", summary.Resource),
			attribute.String("tenant.id", summary.TenantID),
		),
	)
	defer span.End()

	err := p.next.Publish(ctx, ev)
	var dispatchErr *domain.DispatchError
	if errors.As(err, &dispatchErr) {
		span.SetAttributes(attribute.Int("event.failed_handlers", len(dispatchErr.Failures)))
	}
	recordError(span, err)
	return err
}
