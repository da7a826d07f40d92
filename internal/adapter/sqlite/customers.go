package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: CustomerRepository implements domain.CustomerRepository.
var _ domain.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository persists CRM customers.
type CustomerRepository struct {
	store *Store
}

func (r *CustomerRepository) Create(ctx context.Context, c domain.Customer) error {
	_, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, user_id, name, stage) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.UserID, c.Name, string(c.Stage),
	)
	if err != nil {
		return fmt.Errorf("inserting customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) GetByUser(ctx context.Context, tenantID, userID string) (domain.Customer, error) {
	var c domain.Customer
	var stage string

	err := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, name, stage FROM customers WHERE tenant_id = ? AND user_id = ?`,
		tenantID, userID,
	).Scan(&c.ID, &c.TenantID, &c.UserID, &c.Name, &stage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("scanning customer: %w", err)
	}
	c.Stage = domain.Stage(stage)
	return c, nil
}

func (r *CustomerRepository) UpdateStage(ctx context.Context, id string, stage domain.Stage) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE customers SET stage = ? WHERE id = ?`, string(stage), id,
	)
	if err != nil {
		return fmt.Errorf("updating customer stage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}
