package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// AuditTrail writes and reads audit entries. One instance is built at startup
// and shared by every component that records consequential actions.
type AuditTrail struct {
	store  domain.AuditStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditTrail creates an audit trail on top of the given store.
func NewAuditTrail(store domain.AuditStore, logger *slog.Logger) *AuditTrail {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditTrail{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Log appends an entry and returns it. Actor, tenant and IP come from the
// request context unless the record sets them. When ctx carries a transaction
// the entry is written inside it, so a failure here aborts the caller's unit
// of work.
func (a *AuditTrail) Log(ctx context.Context, rec domain.AuditRecord) (domain.AuditEntry, error) {
	rc := domain.RequestFrom(ctx)

	actor := rc.Actor
	if rec.Actor != nil {
		actor = *rec.Actor
	}
	var actorID *string
	if actor.Authenticated() {
		id := actor.UserID
		actorID = &id
	}

	tenantID := rec.TenantID
	if tenantID == nil {
		tenantID = rc.TenantID()
	}

	var ip *string
	if rc.IP != "" {
		addr := rc.IP
		ip = &addr
	}

	id, err := generateID()
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("generating audit id: %w", err)
	}

	entry, err := a.store.Append(ctx, domain.AuditEntry{
		ID:        id,
		Timestamp: a.now(),
		ActorID:   actorID,
		TenantID:  tenantID,
		Action:    rec.Action,
		Resource:  rec.Resource,
		Payload:   rec.Payload,
		IPAddress: ip,
	})
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("writing audit entry %s: %w", rec.Action, err)
	}
	return entry, nil
}

// Record is the best-effort path for informational entries. Failures are
// logged and swallowed.
func (a *AuditTrail) Record(ctx context.Context, rec domain.AuditRecord) {
	if _, err := a.Log(ctx, rec); err != nil {
		a.logger.WarnContext(ctx, "audit record dropped",
			"action", rec.Action,
			"resource", rec.Resource,
			"error", err,
		)
	}
}

// List returns entries newest first. Only superusers may read the trail.
func (a *AuditTrail) List(ctx context.Context, actor domain.Actor, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if !actor.Authenticated() || !actor.Superuser {
		return nil, &domain.AuthorizationDeniedError{
			Actor:    actor.Label(),
			Action:   domain.ActionView,
			Resource: "audit.AuditLog",
		}
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultAuditPageSize
	}
	filter.Limit = min(filter.Limit, maxAuditPageSize)
	filter.Offset = max(filter.Offset, 0)

	return a.store.List(ctx, filter)
}
