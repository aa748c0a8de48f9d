package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateApprovalRequest inserts a new pending ApprovalRequest.
func (q *Queries) CreateApprovalRequest(ctx context.Context, a *model.ApprovalRequest) error {
	const stmt = `
		INSERT INTO approval_requests (id, org_id, invocation_id, requested_by, reason, status, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt,
		a.ID, a.OrgID, a.InvocationID, a.RequestedBy, a.Reason, a.Status, a.ExpiresAt,
	).Scan(&a.CreatedAt)
}

// GetApprovalRequestByID fetches an approval request scoped to its org.
func (q *Queries) GetApprovalRequestByID(ctx context.Context, orgID, id uuid.UUID) (*model.ApprovalRequest, error) {
	const stmt = `
		SELECT id, org_id, invocation_id, requested_by, reason, status, decided_by, decision_note,
		       expires_at, created_at, decided_at
		FROM approval_requests WHERE org_id = $1 AND id = $2`
	var a model.ApprovalRequest
	err := q.db.QueryRow(ctx, stmt, orgID, id).Scan(
		&a.ID, &a.OrgID, &a.InvocationID, &a.RequestedBy, &a.Reason, &a.Status, &a.DecidedBy, &a.DecisionNote,
		&a.ExpiresAt, &a.CreatedAt, &a.DecidedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get approval request: %w", err)
	}
	return &a, nil
}

// DecideApprovalRequest atomically transitions a pending request to a
// terminal status. The WHERE clause's status=$5 guard plus the affected-row
// check is what makes "a decided request is immutable" hold under
// concurrent decisions, not application-level locking.
func (q *Queries) DecideApprovalRequest(ctx context.Context, id uuid.UUID, decidedBy uuid.UUID, note string, newStatus model.ApprovalStatus) (bool, error) {
	const stmt = `
		UPDATE approval_requests
		SET status = $1, decided_by = $2, decision_note = $3, decided_at = now()
		WHERE id = $4 AND status = $5`
	tag, err := q.db.Exec(ctx, stmt, newStatus, decidedBy, note, id, model.ApprovalPending)
	if err != nil {
		return false, fmt.Errorf("deciding approval request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpiredPendingApprovals returns every approval request still pending
// whose TTL has elapsed, across all organizations — the sweep worker's feed.
func (q *Queries) ListExpiredPendingApprovals(ctx context.Context, asOf time.Time) ([]*model.ApprovalRequest, error) {
	const stmt = `
		SELECT id, org_id, invocation_id, requested_by, reason, status, decided_by, decision_note,
		       expires_at, created_at, decided_at
		FROM approval_requests WHERE status = $1 AND expires_at <= $2`
	rows, err := q.db.Query(ctx, stmt, model.ApprovalPending, asOf)
	if err != nil {
		return nil, fmt.Errorf("listing expired approvals: %w", err)
	}
	defer rows.Close()

	var out []*model.ApprovalRequest
	for rows.Next() {
		var a model.ApprovalRequest
		if err := rows.Scan(
			&a.ID, &a.OrgID, &a.InvocationID, &a.RequestedBy, &a.Reason, &a.Status, &a.DecidedBy, &a.DecisionNote,
			&a.ExpiresAt, &a.CreatedAt, &a.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning expired approval: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ExpireApprovalRequest marks a still-pending request expired. Guarded the
// same way DecideApprovalRequest is, so a decision racing the sweep never
// clobbers an approve/reject that landed first.
func (q *Queries) ExpireApprovalRequest(ctx context.Context, id uuid.UUID) (bool, error) {
	const stmt = `
		UPDATE approval_requests SET status = $1, decided_at = now()
		WHERE id = $2 AND status = $3`
	tag, err := q.db.Exec(ctx, stmt, model.ApprovalExpired, id, model.ApprovalPending)
	if err != nil {
		return false, fmt.Errorf("expiring approval request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
