package domain

import "context"

// RequestContext is what the transport layer resolved for the current request:
// the actor, the active tenant (nil when none matched), and the originating IP.
type RequestContext struct {
	Actor     Actor
	Tenant    *Tenant
	IP        string
	RequestID string
}

// TenantID returns the active tenant's ID, or nil when the request has no tenant.
func (r RequestContext) TenantID() *string {
	if r.Tenant == nil {
		return nil
	}
	id := r.Tenant.ID
	return &id
}

type requestKey struct{}

// WithRequest stores the request context in ctx.
func WithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestKey{}, rc)
}

// RequestFrom returns the request context stored in ctx. The zero value (anonymous
// actor, no tenant) is returned when nothing was stored.
func RequestFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestKey{}).(RequestContext)
	return rc
}
