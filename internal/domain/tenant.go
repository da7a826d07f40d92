package domain

import (
	"slices"
	"time"
)

// Bundle is a purchasable set of product scopes and fine-grained feature flags.
// One bundle may be shared by many tenants.
type Bundle struct {
	ID       string
	Name     string
	Products []string
	Features map[string]bool
}

// Enables reports whether the bundle entitles the given permission code, either
// through its product scope or through an explicit feature flag.
func (b Bundle) Enables(code string) bool {
	if slices.Contains(b.Products, ScopeOf(code)) {
		return true
	}
	return b.Features[code]
}

// Tenant is an isolated customer organization. Tenants are deactivated, never
// hard-deleted.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	BundleID  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant creates an active tenant bound to the given bundle.
func NewTenant(id, name, slug, bundleID string) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:        id,
		Name:      name,
		Slug:      slug,
		BundleID:  bundleID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Resource returns the audit resource reference for the tenant.
func (t Tenant) Resource() string {
	return ResourceRef("tenants", "Tenant", t.ID)
}
