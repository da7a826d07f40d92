package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)
	Update(ctx context.Context, tenant Tenant) error
}

// ListFilter holds optional criteria for listing tenants.
type ListFilter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// AccessRepository stores bundles, the permission catalog, tenant roles and
// role assignments.
type AccessRepository interface {
	CreateBundle(ctx context.Context, bundle Bundle) error
	GetBundle(ctx context.Context, id string) (Bundle, error)
	SavePermission(ctx context.Context, perm Permission) error
	CreateRole(ctx context.Context, role Role) error
	GetRole(ctx context.Context, id string) (Role, error)
	AssignRole(ctx context.Context, assignment RoleAssignment) error
	// RoleGrants reports whether any role the user holds within the tenant
	// carries exactly the given permission code.
	RoleGrants(ctx context.Context, userID, tenantID, code string) (bool, error)
}

// EntityRepository persists workflowable entities.
type EntityRepository interface {
	Create(ctx context.Context, entity Entity) error
	Get(ctx context.Context, id string) (Entity, error)
	// SwapStatus moves the entity to next only if it still holds from at the given
	// version. It returns ErrConcurrentTransition when the row changed meanwhile.
	SwapStatus(ctx context.Context, id string, from Status, version int, next Status, at time.Time) error
}

// CustomerRepository persists CRM customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) error
	GetByUser(ctx context.Context, tenantID, userID string) (Customer, error)
	UpdateStage(ctx context.Context, id string, stage Stage) error
}

// AuditStore is the append-only persistence contract for audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// TxManager runs fn inside a unit of work. Repositories called with the context
// passed to fn take part in the same transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransitionValidator checks whether a status change is a declared edge for a kind.
type TransitionValidator interface {
	Validate(ctx context.Context, kind Kind, from, to Status) error
}

// Policy decides whether an actor may perform an action on a labelled resource.
type Policy interface {
	Enforce(ctx context.Context, actor Actor, action, label string) bool
}

// Entitlements decides whether an actor holds a permission code within a tenant.
type Entitlements interface {
	HasPermission(ctx context.Context, actor Actor, code string, tenant *Tenant) bool
}

// EventPublisher dispatches events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
