package domain

import "context"

// EventName identifies an event. Names and payload shapes are a public contract:
// subscribers in other domains integrate against them.
type EventName string

const (
	EventOrderPaid           EventName = "order_paid"
	EventLifecycleTransition EventName = "lifecycle_transition"
	EventObligationCreated   EventName = "obligation_created"
)

// EventNames lists every event the platform publishes.
var EventNames = []EventName{
	EventOrderPaid,
	EventLifecycleTransition,
	EventObligationCreated,
}

// Event is an ephemeral message dispatched by the event bus. It is never stored.
type Event interface {
	Name() EventName
}

// Handler reacts to one event. Returning an error marks the reaction as failed
// without affecting other handlers or the publisher's committed state.
type Handler func(ctx context.Context, ev Event) error

// OrderPaid is published when the payment gateway reports success for an order
// or subscription.
type OrderPaid struct {
	Order   Entity
	Request RequestContext
}

func (OrderPaid) Name() EventName { return EventOrderPaid }

// LifecycleTransition is published after a committed state change.
type LifecycleTransition struct {
	Entity    Entity
	OldStatus Status
	NewStatus Status
	Request   RequestContext
}

func (LifecycleTransition) Name() EventName { return EventLifecycleTransition }

// ObligationCreated is published when a paid order produces a delivery obligation.
type ObligationCreated struct {
	Obligation  Entity
	SourceOrder Entity
	Request     RequestContext
}

func (ObligationCreated) Name() EventName { return EventObligationCreated }

// EventSummary is a flat view of an event for downstream relays.
type EventSummary struct {
	Event     string            `json:"event"`
	Resource  string            `json:"resource"`
	TenantID  string            `json:"tenant_id"`
	Status    string            `json:"status"`
	OldStatus string            `json:"old_status,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Summarize flattens a known event. Unknown events keep only their name.
func Summarize(ev Event) EventSummary {
	s := EventSummary{Event: string(ev.Name())}
	switch e := ev.(type) {
	case OrderPaid:
		s.Resource = e.Order.Resource()
		s.TenantID = e.Order.TenantID()
		s.Status = string(e.Order.Status())
		s.RequestID = e.Request.RequestID
	case LifecycleTransition:
		s.Resource = e.Entity.Resource()
		s.TenantID = e.Entity.TenantID()
		s.Status = string(e.NewStatus)
		s.OldStatus = string(e.OldStatus)
		s.RequestID = e.Request.RequestID
	case ObligationCreated:
		s.Resource = e.Obligation.Resource()
		s.TenantID = e.Obligation.TenantID()
		s.Status = string(e.Obligation.Status())
		s.RequestID = e.Request.RequestID
		s.Extra = map[string]string{"source_order": e.SourceOrder.Resource()}
	}
	return s
}
