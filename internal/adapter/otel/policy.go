package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// MeteredPolicy counts policy decisions by outcome, action and responsibility.
type MeteredPolicy struct {
	next      domain.Policy
	decisions metric.Int64Counter
}

var _ domain.Policy = (*MeteredPolicy)(nil)

// NewMeteredPolicy wraps next. Pass otel.GetMeterProvider() in production.
func NewMeteredPolicy(next domain.Policy, mp metric.MeterProvider) (*MeteredPolicy, error) {
	counter, err := mp.Meter(tracerName).Int64Counter(
		"controlplane.policy.decisions",
		metric.WithDescription("Policy gate decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating policy decision counter: %w", err)
	}
	return &MeteredPolicy{next: next, decisions: counter}, nil
}

func (p *MeteredPolicy) Enforce(ctx context.Context, actor domain.Actor, action, label string) bool {
	allowed := p.next.Enforce(ctx, actor, action, label)

	decision := "deny"
	if allowed {
		decision = "allow"
	}
	p.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("action", actionAttr(action)),
		attribute.String("resource.type", domain.ParseLabel(label).Qualified()),
		attribute.String("actor.responsibility", responsibilityAttr(actor)),
	))
	return allowed
}

// actionAttr keeps the counter's cardinality bounded: the gate's own action
// kinds pass through, domain-specific actions collapse to their kind, and
// everything else is "other".
func actionAttr(action string) string {
	switch action {
	case domain.ActionView, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionAdminDaemon:
		return action
	}
	for kind := range domain.Workflows {
		if strings.HasPrefix(action, string(kind)+"_") {
			return string(kind)
		}
	}
	return "other"
}

func responsibilityAttr(actor domain.Actor) string {
	switch {
	case !actor.Authenticated():
		return "anonymous"
	case actor.Superuser:
		return "superuser"
	case actor.Responsibility == domain.ResponsibilityNone:
		return "none"
	default:
		return string(actor.Responsibility)
	}
}
