package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: EntitlementResolver implements domain.Entitlements.
var _ domain.Entitlements = (*EntitlementResolver)(nil)

// EntitlementResolver answers fine-grained permission checks: the tenant's
// bundle must enable the code's scope (or flag the code itself), and one of
// the user's roles in that tenant must carry the exact code.
type EntitlementResolver struct {
	access domain.AccessRepository
	logger *slog.Logger
}

func NewEntitlementResolver(access domain.AccessRepository, logger *slog.Logger) *EntitlementResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntitlementResolver{access: access, logger: logger}
}

// HasPermission fails closed: anonymous actors, a missing or deactivated tenant
// and lookup errors all deny.
func (r *EntitlementResolver) HasPermission(ctx context.Context, actor domain.Actor, code string, tenant *domain.Tenant) bool {
	if !actor.Authenticated() || tenant == nil || !tenant.Active {
		return false
	}
	if actor.Superuser {
		return true
	}

	bundle, err := r.access.GetBundle(ctx, tenant.BundleID)
	if err != nil {
		r.logger.WarnContext(ctx, "entitlement bundle lookup failed",
			"tenant_id", tenant.ID,
			"bundle_id", tenant.BundleID,
			"error", err,
		)
		return false
	}
	if !bundle.Enables(code) {
		return false
	}

	granted, err := r.access.RoleGrants(ctx, actor.UserID, tenant.ID, code)
	if err != nil {
		r.logger.WarnContext(ctx, "role grant lookup failed",
			"tenant_id", tenant.ID,
			"permission", code,
			"error", err,
		)
		return false
	}
	return granted
}

// Require turns a denied check into an error. A request without a tenant yields
// domain.ErrMissingTenantContext and a deactivated one domain.ErrTenantInactive,
// so callers can tell them apart from a missing grant.
func (r *EntitlementResolver) Require(ctx context.Context, actor domain.Actor, code string, tenant *domain.Tenant) error {
	if tenant == nil {
		return domain.ErrMissingTenantContext
	}
	if !tenant.Active {
		return domain.ErrTenantInactive
	}
	if !r.HasPermission(ctx, actor, code, tenant) {
		return &domain.AuthorizationDeniedError{Actor: actor.Label(), Action: code, Resource: tenant.Resource()}
	}
	return nil
}
