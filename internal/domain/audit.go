package domain

import (
	"strings"
	"time"
)

// Audit action codes written by the control plane itself. Transition entries use
// Kind.AuditAction.
const (
	ActionPolicyGranted             = "POLICY_GRANTED"
	ActionTenantProvisioned         = "TENANT_PROVISIONED"
	ActionTenantDeactivated         = "TENANT_DEACTIVATED"
	ActionRoleCreated               = "ROLE_CREATED"
	ActionRoleAssigned              = "ROLE_ASSIGNED"
	ActionCustomerLifecycleUpdated  = "CUSTOMER_LIFECYCLE_UPDATED"
	ActionDeliveryObligationCreated = "DELIVERY_OBLIGATION_CREATED"
)

// AuditEntry is an immutable record of a consequential action.
type AuditEntry struct {
	ID        string
	Seq       int64
	Timestamp time.Time
	ActorID   *string // nil for system actions
	TenantID  *string // nil for platform-global actions
	Action    string
	Resource  string
	Payload   map[string]any
	IPAddress *string
}

// AuditRecord is the input to the audit trail. Actor and TenantID override what
// would otherwise be inferred from the request context.
type AuditRecord struct {
	Actor    *Actor
	TenantID *string
	Action   string
	Resource string
	Payload  map[string]any
}

// AuditFilter selects entries for the administrator read path.
type AuditFilter struct {
	TenantID string
	Action   string
	Limit    int
	Offset   int
}

// Label is a parsed policy resource label of the form "<domain>.<Type>" or
// "<domain>.<Type>:<id>".
type Label struct {
	Domain string
	Type   string
	ID     string
}

// ParseLabel splits a resource label. Malformed labels yield an empty Domain.
func ParseLabel(raw string) Label {
	head, id, _ := strings.Cut(raw, ":")
	domain, typeName, ok := strings.Cut(head, ".")
	if !ok {
		return Label{Type: head, ID: id}
	}
	return Label{Domain: domain, Type: typeName, ID: id}
}

// Qualified returns "<domain>.<Type>".
func (l Label) Qualified() string {
	if l.Domain == "" {
		return l.Type
	}
	return l.Domain + "." + l.Type
}
