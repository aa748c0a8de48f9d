package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

const cacheTTL = 30 * time.Second

// unlimited is the sentinel spec.md §3/§4.5 assigns any budget dimension
// that should bypass enforcement entirely.
const unlimited = -1

// Enforcer checks and records budget usage for external agents. The current
// period aggregate is cached in Redis as a read-through on top of Postgres,
// the same "hot path in Redis, source of truth in Postgres" split the
// rate limiter and the rest of the enforcement pipeline use.
type Enforcer struct {
	db    *db.Queries
	redis *redis.Client
}

func NewEnforcer(queries *db.Queries, rdb *redis.Client) *Enforcer {
	return &Enforcer{db: queries, redis: rdb}
}

// Usage is the current period's running aggregate for one agent.
type Usage struct {
	Cost        float64
	Tokens      int64
	Invocations int64
}

// CheckResult is the outcome of CheckBudget.
type CheckResult struct {
	Allowed       bool
	Warning       bool
	ThresholdHit  float64 // the highest configured threshold <= ratio, 0 if none
	ProjectedCost float64
	Err           *apierr.Error
}

// Estimate is the caller's pre-call guess at the cost of one invocation, used
// to pre-check whether it would push the period over its cap.
type Estimate struct {
	EstimatedTokens int64
}

// CheckBudget loads the current period's usage for agentID (from cache if
// warm, otherwise Postgres) and evaluates whether one more invocation sized
// by estimate would exceed budget.Period's cap. Hard enforcement denies the
// call outright; soft enforcement always allows but still reports warnings
// and threshold crossings as side signals.
func (e *Enforcer) CheckBudget(ctx context.Context, budget *model.Budget, estimate Estimate) (CheckResult, error) {
	usage, err := e.currentUsage(ctx, budget)
	if err != nil {
		return CheckResult{}, fmt.Errorf("budget: loading usage: %w", err)
	}

	estimatedCost := estimatedCost(budget, estimate)
	projectedCost := usage.Cost + estimatedCost
	projectedTokens := usage.Tokens + estimate.EstimatedTokens
	projectedInvocations := usage.Invocations + 1

	result := CheckResult{Allowed: true, ProjectedCost: projectedCost}

	exceeded := false
	if budget.MaxCostPerPeriod != unlimited && projectedCost > budget.MaxCostPerPeriod {
		exceeded = true
	}
	if budget.MaxTokensPerPeriod != unlimited && projectedTokens > budget.MaxTokensPerPeriod {
		exceeded = true
	}
	if budget.MaxInvocationsPerPeriod != unlimited && projectedInvocations > budget.MaxInvocationsPerPeriod {
		exceeded = true
	}

	if exceeded {
		if budget.EnforcementMode == model.EnforcementHard {
			result.Allowed = false
			result.Err = apierr.WithDetails(apierr.CodeForbidden, "budget limit exceeded", map[string]any{
				"reason": "limit_exceeded",
			})
			return result, nil
		}
		result.Warning = true
	}

	if budget.MaxCostPerPeriod > 0 {
		ratio := projectedCost / budget.MaxCostPerPeriod
		for _, threshold := range budget.Thresholds {
			if ratio >= threshold && threshold > result.ThresholdHit {
				result.ThresholdHit = threshold
			}
		}
		if result.ThresholdHit > 0 {
			result.Warning = true
		}
	}

	return result, nil
}

// RecordUsage appends an immutable UsageRecord keyed to invocationID and
// invalidates every configured budget period's cached aggregate so the next
// CheckBudget call for any of them re-aggregates from Postgres. budgets is
// every row CheckBudget was run against for this invocation (daily, weekly,
// monthly may all be active at once).
func (e *Enforcer) RecordUsage(ctx context.Context, invocationID uuid.UUID, record *model.UsageRecord, budgets []*model.Budget) error {
	if err := e.db.CreateUsageRecord(ctx, invocationID, record); err != nil {
		return fmt.Errorf("budget: recording usage: %w", err)
	}
	if e.redis != nil {
		for _, bud := range budgets {
			loc := ResolveLocation(bud.Timezone)
			start, _ := Window(bud.Period, time.Now(), loc)
			e.redis.Del(ctx, cacheKey(bud.ExternalAgentID, bud.Period, start))
		}
	}
	return nil
}

func (e *Enforcer) currentUsage(ctx context.Context, budget *model.Budget) (Usage, error) {
	loc := ResolveLocation(budget.Timezone)
	start, end := Window(budget.Period, time.Now(), loc)
	key := cacheKey(budget.ExternalAgentID, budget.Period, start)

	if e.redis != nil {
		if cached, err := e.redis.Get(ctx, key).Result(); err == nil {
			var usage Usage
			if jsonErr := json.Unmarshal([]byte(cached), &usage); jsonErr == nil {
				return usage, nil
			}
		}
	}

	cost, err := e.db.SumUsageForAgentInWindow(ctx, budget.ExternalAgentID, start, end)
	if err != nil {
		return Usage{}, err
	}
	tokens, err := e.db.SumTokensForAgentInWindow(ctx, budget.ExternalAgentID, start, end)
	if err != nil {
		return Usage{}, err
	}
	invocations, err := e.db.CountInvocationsForAgentInWindow(ctx, budget.ExternalAgentID, start, end)
	if err != nil {
		return Usage{}, err
	}

	usage := Usage{Cost: cost, Tokens: tokens, Invocations: invocations}
	if e.redis != nil {
		if encoded, err := json.Marshal(usage); err == nil {
			e.redis.Set(ctx, key, encoded, cacheTTL)
		}
	}
	return usage, nil
}

func cacheKey(agentID uuid.UUID, period model.BudgetPeriod, periodStart time.Time) string {
	return fmt.Sprintf("budget:%s:%s:%d", agentID, period, periodStart.Unix())
}

// estimatedCost applies the cost formula from spec.md §4.5:
// input_tokens*input_rate + output_tokens*output_rate + invocations*base_cost.
// Kaizen Studio doesn't distinguish input/output token rates per budget, so
// CostPerToken applies uniformly to the estimate and CostPerInvocation covers
// the fixed per-call charge.
func estimatedCost(budget *model.Budget, estimate Estimate) float64 {
	cost := budget.CostPerInvocation
	if budget.CostPerToken != unlimited {
		cost += float64(estimate.EstimatedTokens) * budget.CostPerToken
	}
	return cost
}
