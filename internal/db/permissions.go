package db

import (
	"context"
	"fmt"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// ListPermissionsForRole returns every permission name granted to role via
// the seeded role_permissions matrix.
func (q *Queries) ListPermissionsForRole(ctx context.Context, role model.Role) ([]string, error) {
	const stmt = `
		SELECT p.name FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role = $1`
	rows, err := q.db.Query(ctx, stmt, role)
	if err != nil {
		return nil, fmt.Errorf("list permissions for role: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan permission name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ListActivePoliciesForPrincipals returns every active policy attached to
// any of the given (principal_type, principal_id) pairs, ordered by
// priority descending — higher priority evaluates first (spec.md §3).
func (q *Queries) ListActivePoliciesForPrincipals(ctx context.Context, orgID string, principals []PolicyPrincipal) ([]*model.Policy, error) {
	const stmt = `
		SELECT DISTINCT p.id, p.org_id, p.resource_type, p.action, p.effect, p.conditions, p.resource_refs, p.priority, p.status, p.created_at, p.updated_at
		FROM policies p
		JOIN policy_assignments pa ON pa.policy_id = p.id
		JOIN unnest($3::text[], $4::text[]) AS want(principal_type, principal_id)
		  ON pa.principal_type = want.principal_type AND pa.principal_id = want.principal_id
		WHERE p.org_id = $1 AND p.status = $2
		ORDER BY p.priority DESC`

	types := make([]string, len(principals))
	ids := make([]string, len(principals))
	for i, pr := range principals {
		types[i] = string(pr.Type)
		ids[i] = pr.ID
	}

	rows, err := q.db.Query(ctx, stmt, orgID, model.PolicyActive, types, ids)
	if err != nil {
		return nil, fmt.Errorf("list active policies: %w", err)
	}
	defer rows.Close()

	var out []*model.Policy
	for rows.Next() {
		var p model.Policy
		if err := rows.Scan(
			&p.ID, &p.OrgID, &p.ResourceType, &p.Action, &p.Effect, &p.Conditions, &p.ResourceRefs, &p.Priority,
			&p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// PolicyPrincipal identifies one (type, id) pair a policy may be assigned to.
type PolicyPrincipal struct {
	Type model.PrincipalType
	ID   string
}
