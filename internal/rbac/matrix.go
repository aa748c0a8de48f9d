// Package rbac decides whether a principal's role includes a required
// `resource:action` permission (spec.md §4.2). The role matrix is a
// declarative Go literal rather than a seeded table: it changes only with a
// deploy, never at runtime, so there's no write path to materialize.
package rbac

import "github.com/integrum-global/kaizen-studio/internal/model"

// viewerPermissions are read-only capabilities every authenticated role has.
var viewerPermissions = []string{
	"agents:read",
	"executions:read",
	"deployments:read",
	"pipelines:read",
	"workspaces:read",
	"teams:read",
}

// developerPermissions adds the ability to create/manage runtime entities.
var developerPermissions = append(append([]string{}, viewerPermissions...),
	"agents:create",
	"agents:update",
	"agents:invoke",
	"executions:create",
	"pipelines:create",
	"pipelines:update",
	"deployments:create",
	"api_keys:create",
	"api_keys:read",
)

// orgAdminPermissions adds organization administration, including the
// audit log, which spec.md §4.2 calls out as admin-only.
var orgAdminPermissions = append(append([]string{}, developerPermissions...),
	"agents:delete",
	"pipelines:delete",
	"deployments:delete",
	"api_keys:revoke",
	"users:invite",
	"users:update",
	"users:remove",
	"policies:create",
	"policies:update",
	"policies:delete",
	"audit:read",
	"webhooks:manage",
	"budgets:manage",
	"approvals:decide",
)

// ownerPermissions adds org lifecycle and GDPR operations, owner-only per
// spec.md §4.2.
var ownerPermissions = append(append([]string{}, orgAdminPermissions...),
	"organizations:update",
	"organizations:delete",
	"gdpr:export",
	"gdpr:delete",
	"sso:manage",
)

// matrix materializes the org_owner ⊃ org_admin ⊃ developer ⊃ viewer
// hierarchy into role -> permission-set, built once at process start.
var matrix = buildMatrix()

func buildMatrix() map[model.Role]map[string]struct{} {
	m := map[model.Role][]string{
		model.RoleViewerM:      viewerPermissions,
		model.RoleDeveloperM:   developerPermissions,
		model.RoleOrgAdmin:     orgAdminPermissions,
		model.RoleOwner:        ownerPermissions,
	}

	out := make(map[model.Role]map[string]struct{}, len(m))
	for role, perms := range m {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		out[role] = set
	}
	return out
}
