package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TenantService provisions and deactivates tenants. Every change is audited in
// the same transaction as the write.
type TenantService struct {
	repo   domain.TenantRepository
	access domain.AccessRepository
	tx     domain.TxManager
	audit  *AuditTrail
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(repo domain.TenantRepository, access domain.AccessRepository, tx domain.TxManager, audit *AuditTrail) *TenantService {
	return &TenantService{
		repo:   repo,
		access: access,
		tx:     tx,
		audit:  audit,
	}
}

// Create persists a new active tenant bound to an existing bundle.
func (s *TenantService) Create(ctx context.Context, name, slug, bundleID string) (domain.Tenant, error) {
	// Check slug uniqueness before creating.
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return domain.Tenant{}, &domain.SlugConflictError{Slug: slug}
	}

	if _, err := s.access.GetBundle(ctx, bundleID); err != nil {
		return domain.Tenant{}, fmt.Errorf("resolving bundle %q: %w", bundleID, err)
	}

	id, err := generateID()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generating tenant id: %w", err)
	}

	tenant := domain.NewTenant(id, name, slug, bundleID)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, tenant); err != nil {
			return fmt.Errorf("creating tenant: %w", err)
		}
		_, err := s.audit.Log(ctx, domain.AuditRecord{
			TenantID: &tenant.ID,
			Action:   domain.ActionTenantProvisioned,
			Resource: tenant.Resource(),
			Payload:  map[string]any{"slug": slug, "bundle_id": bundleID},
		})
		return err
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	return tenant, nil
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns tenants matching the given filter.
func (s *TenantService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	return s.repo.List(ctx, filter)
}

// Lookup resolves an active tenant by ID or slug. It returns nil when nothing
// matches or the tenant is deactivated.
func (s *TenantService) Lookup(ctx context.Context, key string) (*domain.Tenant, error) {
	if key == "" {
		return nil, nil
	}

	tenant, err := s.repo.GetByID(ctx, key)
	if errors.Is(err, domain.ErrTenantNotFound) {
		tenant, err = s.repo.GetBySlug(ctx, key)
	}
	if errors.Is(err, domain.ErrTenantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !tenant.Active {
		return nil, nil
	}
	return &tenant, nil
}

// Deactivate soft-deletes a tenant. Deactivating an inactive tenant is a no-op.
func (s *TenantService) Deactivate(ctx context.Context, id string) (domain.Tenant, error) {
	var tenant domain.Tenant

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		tenant, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !tenant.Active {
			return nil
		}

		tenant.Active = false
		if err := s.repo.Update(ctx, tenant); err != nil {
			return fmt.Errorf("updating tenant: %w", err)
		}

		_, err = s.audit.Log(ctx, domain.AuditRecord{
			TenantID: &tenant.ID,
			Action:   domain.ActionTenantDeactivated,
			Resource: tenant.Resource(),
		})
		return err
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	return tenant, nil
}
