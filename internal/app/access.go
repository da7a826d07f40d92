package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// AccessService administers bundles, the permission catalog and tenant roles.
type AccessService struct {
	access domain.AccessRepository
	tx     domain.TxManager
	audit  *AuditTrail
}

func NewAccessService(access domain.AccessRepository, tx domain.TxManager, audit *AuditTrail) *AccessService {
	return &AccessService{access: access, tx: tx, audit: audit}
}

// CreateBundle registers an entitlement bundle.
func (s *AccessService) CreateBundle(ctx context.Context, name string, products []string, features map[string]bool) (domain.Bundle, error) {
	id, err := generateID()
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("generating bundle id: %w", err)
	}
	bundle := domain.Bundle{ID: id, Name: name, Products: products, Features: features}
	if err := s.access.CreateBundle(ctx, bundle); err != nil {
		return domain.Bundle{}, err
	}
	return bundle, nil
}

// RegisterPermission adds or updates a catalog entry.
func (s *AccessService) RegisterPermission(ctx context.Context, code, description string) (domain.Permission, error) {
	perm := domain.NewPermission(code, description)
	if err := s.access.SavePermission(ctx, perm); err != nil {
		return domain.Permission{}, err
	}
	return perm, nil
}

// CreateRole creates a tenant role carrying the given catalog codes.
func (s *AccessService) CreateRole(ctx context.Context, tenantID, name string, codes []string) (domain.Role, error) {
	id, err := generateID()
	if err != nil {
		return domain.Role{}, fmt.Errorf("generating role id: %w", err)
	}
	role := domain.Role{ID: id, TenantID: tenantID, Name: name, Permissions: codes}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.access.CreateRole(ctx, role); err != nil {
			return err
		}
		_, err := s.audit.Log(ctx, domain.AuditRecord{
			TenantID: &tenantID,
			Action:   domain.ActionRoleCreated,
			Resource: domain.ResourceRef("access", "Role", role.ID),
			Payload:  map[string]any{"name": name, "permissions": codes},
		})
		return err
	})
	if err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

// AssignRole grants a role to a user within the role's tenant.
func (s *AccessService) AssignRole(ctx context.Context, userID, roleID string) (domain.RoleAssignment, error) {
	assignment := domain.RoleAssignment{UserID: userID, RoleID: roleID, AssignedAt: time.Now().UTC()}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		role, err := s.access.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if err := s.access.AssignRole(ctx, assignment); err != nil {
			return err
		}
		_, err = s.audit.Log(ctx, domain.AuditRecord{
			TenantID: &role.TenantID,
			Action:   domain.ActionRoleAssigned,
			Resource: domain.ResourceRef("access", "Role", role.ID),
			Payload:  map[string]any{"user_id": userID},
		})
		return err
	})
	if err != nil {
		return domain.RoleAssignment{}, err
	}
	return assignment, nil
}
