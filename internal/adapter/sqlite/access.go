package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: AccessRepository implements domain.AccessRepository.
var _ domain.AccessRepository = (*AccessRepository)(nil)

// AccessRepository stores entitlement bundles, the permission catalog, tenant
// roles and role assignments.
type AccessRepository struct {
	store *Store
}

func (r *AccessRepository) CreateBundle(ctx context.Context, b domain.Bundle) error {
	products, err := json.Marshal(nonNil(b.Products))
	if err != nil {
		return fmt.Errorf("encoding bundle products: %w", err)
	}
	features := b.Features
	if features == nil {
		features = map[string]bool{}
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("encoding bundle features: %w", err)
	}

	_, err = r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO bundles (id, name, products, features) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, string(products), string(featuresJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting bundle: %w", err)
	}
	return nil
}

func (r *AccessRepository) GetBundle(ctx context.Context, id string) (domain.Bundle, error) {
	var b domain.Bundle
	var products, features string

	err := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, products, features FROM bundles WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &products, &features)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bundle{}, domain.ErrBundleNotFound
		}
		return domain.Bundle{}, fmt.Errorf("scanning bundle: %w", err)
	}

	if err := json.Unmarshal([]byte(products), &b.Products); err != nil {
		return domain.Bundle{}, fmt.Errorf("decoding bundle products: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &b.Features); err != nil {
		return domain.Bundle{}, fmt.Errorf("decoding bundle features: %w", err)
	}
	return b, nil
}

func (r *AccessRepository) SavePermission(ctx context.Context, p domain.Permission) error {
	_, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO permissions (code, scope, description) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET scope = excluded.scope, description = excluded.description`,
		p.Code, p.Scope, p.Description,
	)
	if err != nil {
		return fmt.Errorf("saving permission: %w", err)
	}
	return nil
}

func (r *AccessRepository) CreateRole(ctx context.Context, role domain.Role) error {
	q := r.store.conn(ctx)

	_, err := q.ExecContext(ctx,
		`INSERT INTO roles (id, tenant_id, name) VALUES (?, ?, ?)`,
		role.ID, role.TenantID, role.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.RoleConflictError{TenantID: role.TenantID, Name: role.Name}
		}
		return fmt.Errorf("inserting role: %w", err)
	}

	for _, code := range role.Permissions {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_code) VALUES (?, ?)`,
			role.ID, code,
		); err != nil {
			return fmt.Errorf("granting %q to role: %w", code, err)
		}
	}
	return nil
}

func (r *AccessRepository) GetRole(ctx context.Context, id string) (domain.Role, error) {
	q := r.store.conn(ctx)

	var role domain.Role
	err := q.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM roles WHERE id = ?`, id,
	).Scan(&role.ID, &role.TenantID, &role.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Role{}, domain.ErrRoleNotFound
		}
		return domain.Role{}, fmt.Errorf("scanning role: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT permission_code FROM role_permissions WHERE role_id = ? ORDER BY permission_code`, id,
	)
	if err != nil {
		return domain.Role{}, fmt.Errorf("listing role permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return domain.Role{}, fmt.Errorf("scanning role permission: %w", err)
		}
		role.Permissions = append(role.Permissions, code)
	}
	return role, rows.Err()
}

func (r *AccessRepository) AssignRole(ctx context.Context, a domain.RoleAssignment) error {
	_, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		a.UserID, a.RoleID, a.AssignedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

func (r *AccessRepository) RoleGrants(ctx context.Context, userID, tenantID, code string) (bool, error) {
	var granted bool
	err := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN roles ro ON ro.id = ur.role_id
			JOIN role_permissions rp ON rp.role_id = ro.id
			WHERE ur.user_id = ? AND ro.tenant_id = ? AND rp.permission_code = ?
		)`,
		userID, tenantID, code,
	).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("checking role grants: %w", err)
	}
	return granted, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
