package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

func ptr(s string) *string { return &s }

func TestAudit_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	audit := store.Audit()
	ctx := context.Background()

	for i := range 3 {
		_, err := audit.Append(ctx, domain.AuditEntry{
			ID:        fmt.Sprintf("a-%d", i),
			Timestamp: time.Now(),
			ActorID:   ptr("u-1"),
			TenantID:  ptr("t-1"),
			Action:    "ORDER_STATE_TRANSITION",
			Resource:  "store.Order:o-1",
			Payload:   map[string]any{"step": i},
			IPAddress: ptr("10.0.0.1"),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if _, err := audit.Append(ctx, domain.AuditEntry{
		ID: "a-sys", Timestamp: time.Now(), Action: domain.ActionTenantProvisioned, Resource: "tenants.Tenant:t-2",
	}); err != nil {
		t.Fatalf("Append system entry failed: %v", err)
	}

	all, err := audit.List(ctx, domain.AuditFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d entries, want 4", len(all))
	}
	if all[0].ID != "a-sys" {
		t.Errorf("first entry = %q, want newest a-sys", all[0].ID)
	}
	if all[0].ActorID != nil || all[0].TenantID != nil || all[0].IPAddress != nil {
		t.Error("system entry should have nil actor, tenant and IP")
	}
	if all[1].Payload["step"] != float64(2) {
		t.Errorf("payload step = %v, want 2", all[1].Payload["step"])
	}

	page, err := audit.List(ctx, domain.AuditFilter{TenantID: "t-1", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List page failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "a-1" || page[1].ID != "a-0" {
		t.Errorf("page = %v, want [a-1 a-0]", ids(page))
	}

	byAction, _ := audit.List(ctx, domain.AuditFilter{Action: domain.ActionTenantProvisioned})
	if len(byAction) != 1 {
		t.Errorf("got %d entries for action filter, want 1", len(byAction))
	}
}

func TestAudit_EntriesAreImmutable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Audit().Append(ctx, domain.AuditEntry{
		ID: "a-1", Timestamp: time.Now(), Action: "X", Resource: "r",
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := store.DB().ExecContext(ctx, `UPDATE audit_log SET action = 'Y' WHERE id = 'a-1'`); err == nil {
		t.Error("UPDATE on audit_log should be rejected")
	}
	if _, err := store.DB().ExecContext(ctx, `DELETE FROM audit_log WHERE id = 'a-1'`); err == nil {
		t.Error("DELETE on audit_log should be rejected")
	}

	entries, _ := store.Audit().List(ctx, domain.AuditFilter{})
	if len(entries) != 1 || entries[0].Action != "X" {
		t.Errorf("entry changed: %+v", entries)
	}
}

func ids(entries []domain.AuditEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
