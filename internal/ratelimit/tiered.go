package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Tier is one independent window checked by TieredLimiter.
type Tier struct {
	Name   string // e.g. "minute", "hour", "day"
	Window time.Duration
	Limit  int
}

// TieredLimiter enforces independent minute/hour/day caps per (agent, user)
// pair for external-agent invocations (spec.md §4.4 last paragraph). Each
// tier has its own key so none interfere with the per-principal request
// limiter in ratelimit.go.
type TieredLimiter struct {
	base *Limiter
}

func NewTiered(base *Limiter) *TieredLimiter {
	return &TieredLimiter{base: base}
}

// TieredResult reports the outcome across all tiers. If any tier rejects,
// Allowed is false and TightestTier names the first one that did.
type TieredResult struct {
	Allowed      bool
	TightestTier string
	ResetAt      time.Time
}

// Check evaluates every tier for scope (typically "<agent_id>:<user_id>")
// and increments all of them only if every tier currently allows the
// request — minute/hour/day windows are independent, so a request counts
// against all three simultaneously.
func (t *TieredLimiter) Check(ctx context.Context, scope string, tiers []Tier) (TieredResult, error) {
	for _, tier := range tiers {
		key := fmt.Sprintf("%s:%s", scope, tier.Name)
		res, err := t.base.Check(ctx, key, tier.Limit, tier.Window)
		if err != nil {
			return TieredResult{}, fmt.Errorf("ratelimit: checking tier %s: %w", tier.Name, err)
		}
		if !res.Allowed {
			return TieredResult{Allowed: false, TightestTier: tier.Name, ResetAt: res.ResetAt}, nil
		}
	}

	for _, tier := range tiers {
		key := fmt.Sprintf("%s:%s", scope, tier.Name)
		if err := t.base.Increment(ctx, key, tier.Window); err != nil {
			return TieredResult{}, fmt.Errorf("ratelimit: incrementing tier %s: %w", tier.Name, err)
		}
	}

	return TieredResult{Allowed: true}, nil
}
