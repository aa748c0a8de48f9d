package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateInvocation writes the initial row for an invocation attempt, status
// pending, before upstream dispatch begins.
func (q *Queries) CreateInvocation(ctx context.Context, inv *model.ExternalAgentInvocation) error {
	const stmt = `
		INSERT INTO external_agent_invocations (
			id, org_id, external_agent_id, user_id, request_payload, request_ip, request_user_agent,
			auth_passed, budget_passed, rate_limit_passed, status, trace_id, webhook_delivery_status, invoked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
		RETURNING invoked_at`
	return q.db.QueryRow(ctx, stmt,
		inv.ID, inv.OrgID, inv.ExternalAgentID, inv.UserID, inv.RequestPayload, inv.RequestIP, inv.RequestUserAgent,
		inv.AuthPassed, inv.BudgetPassed, inv.RateLimitPassed, inv.Status, inv.TraceID, inv.WebhookDeliveryStatus,
	).Scan(&inv.InvokedAt)
}

// CompleteInvocation writes the terminal fields of an invocation. It is the
// only mutation allowed after CreateInvocation — rows are append-only past
// this point (spec.md §3).
func (q *Queries) CompleteInvocation(ctx context.Context, inv *model.ExternalAgentInvocation) error {
	const stmt = `
		UPDATE external_agent_invocations SET
			response_payload = $2, response_status_code = $3, execution_time_ms = $4,
			status = $5, webhook_delivery_status = $6, completed_at = now()
		WHERE id = $1
		RETURNING completed_at`
	return q.db.QueryRow(ctx, stmt,
		inv.ID, inv.ResponsePayload, inv.ResponseStatusCode, inv.ExecutionTimeMs, inv.Status, inv.WebhookDeliveryStatus,
	).Scan(&inv.CompletedAt)
}

// ListInvocationsForAgent fetches up to limit+1 invocations for one external
// agent, newest first, optionally starting strictly after a cursor position.
// The caller fetches limit+1 to let httpserver.NewCursorPage detect whether
// another page follows without a separate count query.
func (q *Queries) ListInvocationsForAgent(ctx context.Context, orgID, agentID uuid.UUID, afterInvokedAt *time.Time, afterID *uuid.UUID, limit int) ([]*model.ExternalAgentInvocation, error) {
	args := []any{orgID, agentID, limit}
	stmt := `
		SELECT id, org_id, external_agent_id, user_id, request_payload, request_ip, request_user_agent,
		       response_payload, response_status_code, execution_time_ms,
		       auth_passed, budget_passed, rate_limit_passed, status, trace_id, webhook_delivery_status,
		       invoked_at, completed_at
		FROM external_agent_invocations
		WHERE org_id = $1 AND external_agent_id = $2`
	if afterInvokedAt != nil {
		stmt += ` AND (invoked_at, id) < ($4, $5)`
		args = append(args, *afterInvokedAt, *afterID)
	}
	stmt += ` ORDER BY invoked_at DESC, id DESC LIMIT $3`

	rows, err := q.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var invs []*model.ExternalAgentInvocation
	for rows.Next() {
		var inv model.ExternalAgentInvocation
		if err := rows.Scan(
			&inv.ID, &inv.OrgID, &inv.ExternalAgentID, &inv.UserID, &inv.RequestPayload, &inv.RequestIP, &inv.RequestUserAgent,
			&inv.ResponsePayload, &inv.ResponseStatusCode, &inv.ExecutionTimeMs,
			&inv.AuthPassed, &inv.BudgetPassed, &inv.RateLimitPassed, &inv.Status, &inv.TraceID, &inv.WebhookDeliveryStatus,
			&inv.InvokedAt, &inv.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		invs = append(invs, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	return invs, nil
}

// CreateLineage writes the append-only InvocationLineage row. There must be
// exactly one per terminal ExternalAgentInvocation (spec.md §8).
func (q *Queries) CreateLineage(ctx context.Context, l *model.InvocationLineage) error {
	const stmt = `
		INSERT INTO invocation_lineage (
			id, external_user_id, external_user_email, external_user_name,
			external_system, external_session_id,
			api_key_id, org_id, team_id,
			external_agent_id, endpoint,
			trace_id, span_id,
			request_snapshot, response_snapshot,
			cost_usd, tokens, status,
			budget_checked, budget_exceeded, approval_required, approval_granted,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22, now())
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt,
		l.ID, l.ExternalUserID, l.ExternalUserEmail, l.ExternalUserName,
		l.ExternalSystem, l.ExternalSessionID,
		l.APIKeyID, l.OrgID, l.TeamID,
		l.ExternalAgentID, l.Endpoint,
		l.TraceID, l.SpanID,
		l.RequestSnapshot, l.ResponseSnapshot,
		l.CostUSD, l.Tokens, l.Status,
		l.BudgetChecked, l.BudgetExceeded, l.ApprovalRequired, l.ApprovalGranted,
	).Scan(&l.CreatedAt)
}

// CreateUsageRecord writes an immutable billing line item for an invocation.
func (q *Queries) CreateUsageRecord(ctx context.Context, invocationID uuid.UUID, u *model.UsageRecord) error {
	const stmt = `
		INSERT INTO usage_records (id, org_id, resource_type, quantity, unit, unit_cost, total_cost, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		RETURNING recorded_at`
	u.ID = invocationID
	return q.db.QueryRow(ctx, stmt,
		u.ID, u.OrgID, u.ResourceType, u.Quantity, u.Unit, u.UnitCost, u.TotalCost,
	).Scan(&u.RecordedAt)
}

// GetLineageByInvocationID fetches the lineage row for a terminal invocation.
func (q *Queries) GetLineageByInvocationID(ctx context.Context, id uuid.UUID) (*model.InvocationLineage, error) {
	const stmt = `
		SELECT id, external_user_id, external_user_email, external_user_name,
		       external_system, external_session_id,
		       api_key_id, org_id, team_id,
		       external_agent_id, endpoint,
		       trace_id, span_id,
		       request_snapshot, response_snapshot,
		       cost_usd, tokens, status,
		       budget_checked, budget_exceeded, approval_required, approval_granted,
		       created_at
		FROM invocation_lineage WHERE id = $1`
	var l model.InvocationLineage
	err := q.db.QueryRow(ctx, stmt, id).Scan(
		&l.ID, &l.ExternalUserID, &l.ExternalUserEmail, &l.ExternalUserName,
		&l.ExternalSystem, &l.ExternalSessionID,
		&l.APIKeyID, &l.OrgID, &l.TeamID,
		&l.ExternalAgentID, &l.Endpoint,
		&l.TraceID, &l.SpanID,
		&l.RequestSnapshot, &l.ResponseSnapshot,
		&l.CostUSD, &l.Tokens, &l.Status,
		&l.BudgetChecked, &l.BudgetExceeded, &l.ApprovalRequired, &l.ApprovalGranted,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get lineage: %w", err)
	}
	return &l, nil
}
