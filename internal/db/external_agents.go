package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateExternalAgent inserts a new external agent binding. Credentials must
// already be sealed by internal/keystore.Cipher before calling this.
func (q *Queries) CreateExternalAgent(ctx context.Context, a *model.ExternalAgent) error {
	const stmt = `
		INSERT INTO external_agents (
			id, org_id, workspace_id, platform, auth_type, encrypted_credentials, platform_config, webhook_url,
			budget_limit_daily, budget_limit_monthly, rate_limit_per_minute, rate_limit_per_hour, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now(), now())
		RETURNING created_at, updated_at`
	return q.db.QueryRow(ctx, stmt,
		a.ID, a.OrgID, a.WorkspaceID, a.Platform, a.AuthType, a.EncryptedCredentials, a.PlatformConfig, a.WebhookURL,
		a.BudgetLimitDaily, a.BudgetLimitMonthly, a.RateLimitPerMinute, a.RateLimitPerHour, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetExternalAgentByID fetches an external agent scoped to its owning org.
func (q *Queries) GetExternalAgentByID(ctx context.Context, orgID, id uuid.UUID) (*model.ExternalAgent, error) {
	const stmt = `
		SELECT id, org_id, workspace_id, platform, auth_type, encrypted_credentials, platform_config, webhook_url,
		       budget_limit_daily, budget_limit_monthly, rate_limit_per_minute, rate_limit_per_hour, status, created_at, updated_at
		FROM external_agents WHERE org_id = $1 AND id = $2 AND status != $3`
	var a model.ExternalAgent
	err := q.db.QueryRow(ctx, stmt, orgID, id, model.AgentStatusDeleted).Scan(
		&a.ID, &a.OrgID, &a.WorkspaceID, &a.Platform, &a.AuthType, &a.EncryptedCredentials, &a.PlatformConfig,
		&a.WebhookURL, &a.BudgetLimitDaily, &a.BudgetLimitMonthly, &a.RateLimitPerMinute, &a.RateLimitPerHour,
		&a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get external agent: %w", err)
	}
	return &a, nil
}

// ListBudgetsForAgent returns every period row configured for an agent
// (an agent may have a daily, weekly, and monthly cap all active at once,
// since the budgets primary key is (external_agent_id, period)). Enforcement
// must check every row it returns, not assume a single "daily" default.
func (q *Queries) ListBudgetsForAgent(ctx context.Context, agentID uuid.UUID) ([]*model.Budget, error) {
	const stmt = `
		SELECT external_agent_id, period, max_cost_per_period, max_tokens_per_period, max_invocations_per_period,
		       thresholds, enforcement_mode, rollover_unused, cost_per_invocation, cost_per_token, timezone
		FROM budgets WHERE external_agent_id = $1`
	rows, err := q.db.Query(ctx, stmt, agentID)
	if err != nil {
		return nil, fmt.Errorf("listing budgets for agent: %w", err)
	}
	defer rows.Close()

	var out []*model.Budget
	for rows.Next() {
		var b model.Budget
		if err := rows.Scan(
			&b.ExternalAgentID, &b.Period, &b.MaxCostPerPeriod, &b.MaxTokensPerPeriod, &b.MaxInvocationsPerPeriod,
			&b.Thresholds, &b.EnforcementMode, &b.RolloverUnused, &b.CostPerInvocation, &b.CostPerToken, &b.Timezone,
		); err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing budgets for agent: %w", err)
	}
	return out, nil
}

// SumUsageForAgentInWindow sums UsageRecord.total_cost for an agent's
// invocations within [start, end).
func (q *Queries) SumUsageForAgentInWindow(ctx context.Context, agentID uuid.UUID, start, end time.Time) (float64, error) {
	const stmt = `
		SELECT COALESCE(SUM(ur.total_cost), 0)
		FROM usage_records ur
		JOIN external_agent_invocations i ON i.id = ur.id
		WHERE i.external_agent_id = $1 AND ur.recorded_at >= $2 AND ur.recorded_at < $3`
	var total float64
	if err := q.db.QueryRow(ctx, stmt, agentID, start, end).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum usage for agent: %w", err)
	}
	return total, nil
}

// SumTokensForAgentInWindow sums UsageRecord.quantity for resource_type
// "tokens" within [start, end).
func (q *Queries) SumTokensForAgentInWindow(ctx context.Context, agentID uuid.UUID, start, end time.Time) (int64, error) {
	const stmt = `
		SELECT COALESCE(SUM(ur.quantity), 0)
		FROM usage_records ur
		JOIN external_agent_invocations i ON i.id = ur.id
		WHERE i.external_agent_id = $1 AND ur.resource_type = 'tokens'
		  AND ur.recorded_at >= $2 AND ur.recorded_at < $3`
	var total int64
	if err := q.db.QueryRow(ctx, stmt, agentID, start, end).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum tokens for agent: %w", err)
	}
	return total, nil
}

// CountInvocationsForAgentInWindow counts invocations in [start, end).
func (q *Queries) CountInvocationsForAgentInWindow(ctx context.Context, agentID uuid.UUID, start, end time.Time) (int64, error) {
	const stmt = `
		SELECT COUNT(*) FROM external_agent_invocations
		WHERE external_agent_id = $1 AND invoked_at >= $2 AND invoked_at < $3`
	var count int64
	if err := q.db.QueryRow(ctx, stmt, agentID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count invocations for agent: %w", err)
	}
	return count, nil
}
