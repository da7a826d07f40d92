package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: EntityRepository implements domain.EntityRepository.
var _ domain.EntityRepository = (*EntityRepository)(nil)

// EntityRepository persists workflowable entities. Status changes go through
// SwapStatus only, guarded by the row version.
type EntityRepository struct {
	store *Store
}

// Create inserts a new entity. Its status must be a declared state of its kind.
func (r *EntityRepository) Create(ctx context.Context, e domain.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}

	attrs, err := json.Marshal(e.Attributes())
	if err != nil {
		return fmt.Errorf("encoding entity attributes: %w", err)
	}

	version := e.Version()
	if version == 0 {
		version = 1
	}

	_, err = r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO entities (id, tenant_id, domain, type_name, service_obligation, owner_id, attributes, status, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID(), e.TenantID(), e.Domain(), e.TypeName(), e.ServiceObligation(), e.OwnerID(),
		string(attrs), string(e.Status()), version, e.UpdatedAt().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

func (r *EntityRepository) Get(ctx context.Context, id string) (domain.Entity, error) {
	var spec domain.EntitySpec
	var attrs, status, updatedAt string

	err := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, domain, type_name, service_obligation, owner_id, attributes, status, version, updated_at
		 FROM entities WHERE id = ?`, id,
	).Scan(&spec.ID, &spec.TenantID, &spec.Domain, &spec.TypeName, &spec.ServiceObligation,
		&spec.OwnerID, &attrs, &status, &spec.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entity{}, domain.ErrEntityNotFound
		}
		return domain.Entity{}, fmt.Errorf("scanning entity: %w", err)
	}

	if err := json.Unmarshal([]byte(attrs), &spec.Attributes); err != nil {
		return domain.Entity{}, fmt.Errorf("decoding entity attributes: %w", err)
	}
	spec.Status = domain.Status(status)
	spec.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return domain.NewEntity(spec), nil
}

func (r *EntityRepository) SwapStatus(ctx context.Context, id string, from domain.Status, version int, next domain.Status, at time.Time) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE entities SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ? AND version = ?`,
		string(next), at.UTC().Format(timeFormat), id, string(from), version,
	)
	if err != nil {
		return fmt.Errorf("updating entity status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentTransition
	}
	return nil
}
