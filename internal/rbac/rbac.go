package rbac

import (
	"strings"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Require reports whether role grants permission, which must be shaped
// "resource:action". A role also satisfies permission if it holds the
// matching "resource:*" wildcard.
func Require(role model.Role, permission string) bool {
	perms, ok := matrix[role]
	if !ok {
		return false
	}
	if _, ok := perms[permission]; ok {
		return true
	}

	resource, _, found := strings.Cut(permission, ":")
	if !found {
		return false
	}
	_, ok = perms[resource+":*"]
	return ok
}

// Check is the HTTP-pipeline-facing form of Require: it folds the anonymous
// and denied cases into the typed errors the error-boundary middleware
// expects (spec.md §4.2 — anonymous gets UNAUTHORIZED, known-but-denied
// gets FORBIDDEN).
func Check(isAnonymous bool, role model.Role, permission string) *apierr.Error {
	if isAnonymous {
		return apierr.Unauthorized("authentication required")
	}
	if !Require(role, permission) {
		return apierr.Forbidden("role does not grant " + permission)
	}
	return nil
}
