package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateAuditLogEntry writes one append-only audit row. Callers (the async
// buffered Writer in internal/audit) must treat a failure here as
// non-fatal to the request that triggered it.
func (q *Queries) CreateAuditLogEntry(ctx context.Context, a *model.AuditLog) error {
	const stmt = `
		INSERT INTO audit_logs (id, org_id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, status, error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now())
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt,
		a.ID, a.OrgID, a.UserID, a.Action, a.ResourceType, a.ResourceID, a.Details, a.IPAddress, a.UserAgent,
		a.Status, a.ErrorMessage,
	).Scan(&a.CreatedAt)
}

// AuditLogFilter narrows GET /audit/logs (spec.md §6).
type AuditLogFilter struct {
	OrgID        uuid.UUID
	UserID       *uuid.UUID
	Action       *string
	ResourceType *string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}

// ListAuditLogs returns a page of audit logs matching filter, newest first.
func (q *Queries) ListAuditLogs(ctx context.Context, f AuditLogFilter) ([]*model.AuditLog, error) {
	const stmt = `
		SELECT id, org_id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, status, error_message, created_at
		FROM audit_logs
		WHERE org_id = $1
		  AND ($2::uuid IS NULL OR user_id = $2)
		  AND ($3::text IS NULL OR action = $3)
		  AND ($4::text IS NULL OR resource_type = $4)
		  AND ($5::timestamptz IS NULL OR created_at >= $5)
		  AND ($6::timestamptz IS NULL OR created_at < $6)
		ORDER BY created_at DESC
		LIMIT $7 OFFSET $8`
	rows, err := q.db.Query(ctx, stmt, f.OrgID, f.UserID, f.Action, f.ResourceType, f.StartDate, f.EndDate, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditLog
	for rows.Next() {
		var a model.AuditLog
		if err := rows.Scan(
			&a.ID, &a.OrgID, &a.UserID, &a.Action, &a.ResourceType, &a.ResourceID, &a.Details, &a.IPAddress,
			&a.UserAgent, &a.Status, &a.ErrorMessage, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
