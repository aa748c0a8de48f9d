package abac

import (
	"fmt"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Effect is the outcome of evaluating a set of applicable policies.
type Effect int

const (
	// NotApplicable means no policy matched (resource_type, action) for this
	// principal; the caller should fall back to the RBAC result.
	NotApplicable Effect = iota
	Allow
	Deny
)

// Decision is the result of Evaluate. Err is set only on a fail-closed
// evaluation failure (spec.md §4.3: this must surface as 500, never 403).
type Decision struct {
	Effect Effect
	Err    error
}

// Evaluate runs every applicable, active policy (already filtered and
// ordered by priority descending by the caller's store query) against
// attrs. Deny overrides allow at any priority once it has matched — a
// lower-priority deny still wins over an already-matched higher-priority
// allow.
func Evaluate(policies []*model.Policy, attrs Attrs) Decision {
	decision := Decision{Effect: NotApplicable}

	for _, p := range policies {
		cond, err := ParsePolicyConditions(p.Conditions)
		if err != nil {
			return Decision{Err: fmt.Errorf("abac: policy %s: %w", p.ID, err)}
		}

		matched, err := cond.Eval(attrs)
		if err != nil {
			return Decision{Err: fmt.Errorf("abac: policy %s: %w", p.ID, err)}
		}
		if !matched {
			continue
		}

		switch p.Effect {
		case model.EffectDeny:
			return Decision{Effect: Deny}
		case model.EffectAllow:
			decision.Effect = Allow
		}
	}

	return decision
}

// AttrsFromIdentity builds the subject portion of Attrs for an authenticated
// principal.
func AttrsFromIdentity(userID, orgID, role string) map[string]any {
	return map[string]any{
		"id":      userID,
		"org_id":  orgID,
		"role":    role,
	}
}
