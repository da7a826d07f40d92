package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Kind tags a workflowable entity with the transition table that governs it.
type Kind string

const (
	KindOrder    Kind = "ORDER"
	KindService  Kind = "SERVICE"
	KindIncident Kind = "INCIDENT"
)

// Status is a lifecycle state of a workflowable entity.
type Status string

// Order states.
const (
	StatusPending     Status = "pending"
	StatusPaid        Status = "paid"
	StatusProvisioned Status = "provisioned"
	StatusFulfilled   Status = "fulfilled"
	StatusFailed      Status = "failed"
)

// Service obligation and subscription states.
const (
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusCompleted   Status = "completed"
	StatusBreachedSLA Status = "breached_sla"
)

// Incident states.
const (
	StatusNew           Status = "new"
	StatusInvestigating Status = "investigating"
	StatusContainment   Status = "containment"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

// Transition is a legal edge: an entity in Src may move to Dst.
type Transition struct {
	Src Status
	Dst Status
}

// Workflow declares the state set and edges of one kind.
type Workflow struct {
	States      []Status
	Transitions []Transition
}

// Workflows holds the governed kinds. Terminal states appear in States with no
// outgoing edge.
var Workflows = map[Kind]Workflow{
	KindOrder: {
		States: []Status{StatusPending, StatusPaid, StatusProvisioned, StatusFulfilled, StatusFailed},
		Transitions: []Transition{
			{Src: StatusPending, Dst: StatusPaid},
			{Src: StatusPending, Dst: StatusFailed},
			{Src: StatusPaid, Dst: StatusProvisioned},
			{Src: StatusPaid, Dst: StatusFailed},
			{Src: StatusProvisioned, Dst: StatusFulfilled},
			{Src: StatusProvisioned, Dst: StatusFailed},
			{Src: StatusFailed, Dst: StatusPending}, // retry
		},
	},
	KindService: {
		States: []Status{StatusActive, StatusSuspended, StatusCompleted, StatusBreachedSLA},
		Transitions: []Transition{
			{Src: StatusActive, Dst: StatusSuspended},
			{Src: StatusActive, Dst: StatusCompleted},
			{Src: StatusActive, Dst: StatusBreachedSLA},
			{Src: StatusSuspended, Dst: StatusActive},
			{Src: StatusSuspended, Dst: StatusCompleted},
			{Src: StatusBreachedSLA, Dst: StatusActive},
			{Src: StatusBreachedSLA, Dst: StatusSuspended},
		},
	},
	KindIncident: {
		States: []Status{StatusNew, StatusInvestigating, StatusContainment, StatusResolved, StatusClosed},
		Transitions: []Transition{
			{Src: StatusNew, Dst: StatusInvestigating},
			{Src: StatusNew, Dst: StatusResolved},
			{Src: StatusInvestigating, Dst: StatusContainment},
			{Src: StatusInvestigating, Dst: StatusResolved},
			{Src: StatusContainment, Dst: StatusResolved},
			{Src: StatusResolved, Dst: StatusClosed},
		},
	},
}

// ResolveKind maps an entity's type name and obligation marker to its kind.
// Unknown types fall back to their upper-cased type name, which has no table.
func ResolveKind(typeName string, serviceObligation bool) Kind {
	switch typeName {
	case "Order":
		return KindOrder
	case "SecurityIncident", "Incident":
		return KindIncident
	case "Subscription":
		return KindService
	}
	if serviceObligation {
		return KindService
	}
	return Kind(strings.ToUpper(typeName))
}

// Governed reports whether the kind declares a transition table.
func (k Kind) Governed() bool {
	_, ok := Workflows[k]
	return ok
}

// Declares reports whether s is in the kind's state set. Ungoverned kinds
// declare every non-empty status.
func (k Kind) Declares(s Status) bool {
	wf, ok := Workflows[k]
	if !ok {
		return s != ""
	}
	return slices.Contains(wf.States, s)
}

// AuditAction is the audit action code written for a transition of this kind.
func (k Kind) AuditAction() string {
	return string(k) + "_STATE_TRANSITION"
}

// Entity is a business record whose status is governed by the state machine.
// The status is not exported: it can only be set at construction or replaced
// by the state machine through EntityRepository.SwapStatus.
type Entity struct {
	id                string
	tenantID          string
	domain            string
	typeName          string
	serviceObligation bool
	ownerID           string
	attrs             map[string]string
	status            Status
	version           int
	updatedAt         time.Time
}

// EntitySpec carries the fields of a workflowable entity at creation or load.
type EntitySpec struct {
	ID                string
	TenantID          string
	Domain            string
	TypeName          string
	ServiceObligation bool
	OwnerID           string
	Attributes        map[string]string
	Status            Status
	Version           int
	UpdatedAt         time.Time
}

// NewEntity builds an entity from a spec. Repositories use it when hydrating rows.
func NewEntity(s EntitySpec) Entity {
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return Entity{
		id:                s.ID,
		tenantID:          s.TenantID,
		domain:            s.Domain,
		typeName:          s.TypeName,
		serviceObligation: s.ServiceObligation,
		ownerID:           s.OwnerID,
		attrs:             maps.Clone(s.Attributes),
		status:            s.Status,
		version:           s.Version,
		updatedAt:         updatedAt,
	}
}

func (e Entity) ID() string { return e.id }
func (e Entity) TenantID() string { return e.tenantID }
func (e Entity) Domain() string { return e.domain }
func (e Entity) TypeName() string { return e.typeName }
func (e Entity) ServiceObligation() bool { return e.serviceObligation }
func (e Entity) OwnerID() string { return e.ownerID }
func (e Entity) Status() Status { return e.status }
func (e Entity) Version() int { return e.version }
func (e Entity) UpdatedAt() time.Time { return e.updatedAt }

// Attribute returns a free-form attribute such as the service type of an order.
func (e Entity) Attribute(key string) string {
	return e.attrs[key]
}

// Attributes returns a copy of the entity's attributes.
func (e Entity) Attributes() map[string]string {
	return maps.Clone(e.attrs)
}

// Kind resolves the entity's transition table tag.
func (e Entity) Kind() Kind {
	return ResolveKind(e.typeName, e.serviceObligation)
}

// Label is the policy resource label "<domain>.<Type>:<id>".
func (e Entity) Label() string {
	return ResourceRef(e.domain, e.typeName, e.id)
}

// Resource is the audit resource reference; it matches Label.
func (e Entity) Resource() string {
	return e.Label()
}

// Validate checks that the entity's status belongs to its kind.
func (e Entity) Validate() error {
	if kind := e.Kind(); !kind.Declares(e.status) {
		return &InvalidStatusError{Kind: kind, Status: e.status}
	}
	return nil
}

func (e Entity) String() string {
	return fmt.Sprintf("%s[%s]", e.Label(), e.status)
}

// ResourceRef formats "<domain>.<type>:<id>".
func ResourceRef(domain, typeName, id string) string {
	return domain + "." + typeName + ":" + id
}
