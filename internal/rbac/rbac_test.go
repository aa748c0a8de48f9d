package rbac

import (
	"net/http"
	"testing"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

func TestRequire_HierarchyIsCumulative(t *testing.T) {
	if !Require(model.RoleViewerM, "agents:read") {
		t.Fatal("viewer should have agents:read")
	}
	if Require(model.RoleViewerM, "agents:create") {
		t.Fatal("viewer should not have agents:create")
	}
	if !Require(model.RoleDeveloperM, "agents:read") {
		t.Fatal("developer should inherit viewer's agents:read")
	}
	if !Require(model.RoleDeveloperM, "agents:create") {
		t.Fatal("developer should have agents:create")
	}
	if Require(model.RoleDeveloperM, "users:invite") {
		t.Fatal("developer should not have users:invite")
	}
	if !Require(model.RoleOrgAdmin, "users:invite") {
		t.Fatal("org_admin should have users:invite")
	}
	if !Require(model.RoleOrgAdmin, "audit:read") {
		t.Fatal("org_admin should have audit:read")
	}
	if Require(model.RoleOrgAdmin, "organizations:delete") {
		t.Fatal("org_admin should not have organizations:delete")
	}
	if !Require(model.RoleOwner, "organizations:delete") {
		t.Fatal("owner should have organizations:delete")
	}
}

func TestRequire_UnknownRoleDenied(t *testing.T) {
	if Require(model.Role("no_such_role"), "agents:read") {
		t.Fatal("unknown role should never be granted any permission")
	}
}

func TestRequire_MalformedPermissionDenied(t *testing.T) {
	if Require(model.RoleOwner, "no-colon-here") {
		t.Fatal("a permission string with no resource:action shape should never match")
	}
}

func TestCheck_AnonymousIsUnauthorized(t *testing.T) {
	err := Check(true, model.RoleOwner, "agents:read")
	if err == nil {
		t.Fatal("expected an error for an anonymous caller")
	}
	if err.HTTPStatus() != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", err.HTTPStatus())
	}
}

func TestCheck_DeniedIsForbidden(t *testing.T) {
	err := Check(false, model.RoleViewerM, "agents:create")
	if err == nil {
		t.Fatal("expected an error for a role lacking the permission")
	}
	if err.HTTPStatus() != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", err.HTTPStatus())
	}
}

func TestCheck_GrantedReturnsNil(t *testing.T) {
	if err := Check(false, model.RoleOwner, "agents:read"); err != nil {
		t.Fatalf("expected no error for a granted permission, got %v", err)
	}
}
