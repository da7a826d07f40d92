package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

func TestAccessService_CreateAndAssignRole(t *testing.T) {
	access := newMockAccess()
	auditStore := &mockAuditStore{}
	svc := app.NewAccessService(access, passthroughTx{}, app.NewAuditTrail(auditStore, nil))
	ctx := context.Background()

	perm, err := svc.RegisterPermission(ctx, "crm.view_client", "View clients")
	if err != nil {
		t.Fatalf("RegisterPermission failed: %v", err)
	}
	if perm.Scope != "crm" {
		t.Errorf("Scope = %q, want crm", perm.Scope)
	}

	role, err := svc.CreateRole(ctx, "t-1", "Sales", []string{"crm.view_client"})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	assignment, err := svc.AssignRole(ctx, "u-1", role.ID)
	if err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	if assignment.AssignedAt.IsZero() {
		t.Error("AssignedAt should be set")
	}

	granted, _ := access.RoleGrants(ctx, "u-1", "t-1", "crm.view_client")
	if !granted {
		t.Error("assigned role should grant crm.view_client")
	}

	actions := auditStore.actions()
	if len(actions) != 2 || actions[0] != domain.ActionRoleCreated || actions[1] != domain.ActionRoleAssigned {
		t.Errorf("audit actions = %v", actions)
	}
	if tid := auditStore.entries[1].TenantID; tid == nil || *tid != "t-1" {
		t.Errorf("assignment audited against tenant %v, want t-1", tid)
	}
}

func TestAccessService_DuplicateRoleName(t *testing.T) {
	svc := app.NewAccessService(newMockAccess(), passthroughTx{}, app.NewAuditTrail(&mockAuditStore{}, nil))
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "t-1", "Sales", nil); err != nil {
		t.Fatalf("first CreateRole failed: %v", err)
	}
	_, err := svc.CreateRole(ctx, "t-1", "Sales", nil)
	var conflict *domain.RoleConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected RoleConflictError, got %v", err)
	}

	// Same name in another tenant is fine.
	if _, err := svc.CreateRole(ctx, "t-2", "Sales", nil); err != nil {
		t.Errorf("CreateRole in other tenant failed: %v", err)
	}
}

func TestAccessService_AssignUnknownRole(t *testing.T) {
	svc := app.NewAccessService(newMockAccess(), passthroughTx{}, app.NewAuditTrail(&mockAuditStore{}, nil))

	_, err := svc.AssignRole(context.Background(), "u-1", "missing")
	if !errors.Is(err, domain.ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}
}
