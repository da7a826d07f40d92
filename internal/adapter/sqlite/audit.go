package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: AuditStore implements domain.AuditStore.
var _ domain.AuditStore = (*AuditStore)(nil)

// auditTimeFormat keeps sub-second precision so entries written within the same
// second still read back in order.
const auditTimeFormat = time.RFC3339Nano

// AuditStore appends audit entries. UPDATE and DELETE on audit_log are rejected
// by triggers installed in the initial migration.
type AuditStore struct {
	store *Store
}

func (s *AuditStore) Append(ctx context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encoding audit payload: %w", err)
	}

	result, err := s.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO audit_log (id, timestamp, actor_id, tenant_id, action, resource, payload, ip_address)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(auditTimeFormat), e.ActorID, e.TenantID,
		e.Action, e.Resource, string(payloadJSON), e.IPAddress,
	)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("appending audit entry: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("reading audit sequence: %w", err)
	}
	e.Seq = seq
	e.Payload = payload
	return e, nil
}

// List returns entries newest first.
func (s *AuditStore) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query := `SELECT seq, id, timestamp, actor_id, tenant_id, action, resource, payload, ip_address
		FROM audit_log WHERE 1 = 1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}

	query += ` ORDER BY seq DESC`

	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.store.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var ts, payload string
		var actorID, tenantID, ip sql.NullString

		if err := rows.Scan(&e.Seq, &e.ID, &ts, &actorID, &tenantID, &e.Action, &e.Resource, &payload, &ip); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(auditTimeFormat, ts)
		e.ActorID = nullable(actorID)
		e.TenantID = nullable(tenantID)
		e.IPAddress = nullable(ip)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decoding audit payload: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
