// Package auth authenticates inbound requests (spec.md §4.1) and carries the
// resolved Identity through the request context for every later pipeline
// stage (RBAC, ABAC, rate limiting, audit).
package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Method records which authenticator produced an Identity.
type Method string

const (
	MethodDevHeader Method = "dev_header"
	MethodAPIKey    Method = "api_key"
	MethodJWT       Method = "jwt"
	MethodAnonymous Method = "anonymous"
)

// Identity is the resolved principal, attached to the request context by
// Middleware. A nil UserID with a non-nil APIKeyID represents an
// API-key-authenticated caller with no specific human attached.
type Identity struct {
	UserID     *uuid.UUID
	OrgID      uuid.UUID
	Role       model.Role
	APIKeyID   *uuid.UUID
	Method     Method
	RoleStale  bool // spec.md §4.1: jwt.role disagreed with the DB membership role, DB role won
}

// IsAnonymous reports whether no principal was established.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == MethodAnonymous
}

type contextKey struct{ name string }

var identityContextKey = &contextKey{"identity"}

// NewContext returns a copy of ctx carrying identity.
func NewContext(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// FromContext extracts the Identity stored by Middleware, or an anonymous
// Identity if none was set.
func FromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityContextKey).(*Identity); ok && v != nil {
		return v
	}
	return &Identity{Method: MethodAnonymous}
}
