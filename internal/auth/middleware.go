package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// ExemptPaths always pass through the authenticator as anonymous, without
// consulting any of the precedence chain (spec.md §4.1).
var ExemptPaths = map[string]bool{
	"/":                      true,
	"/health":                true,
	"/docs":                  true,
	"/redoc":                 true,
	"/openapi.json":          true,
	"/metrics":               true,
	"/api/v1/auth/register":  true,
	"/api/v1/auth/login":     true,
	"/api/v1/auth/refresh":   true,
}

// Authenticator resolves the caller identity from the dev header, an API
// key, or a bearer JWT, in that order, the first match winning (spec.md
// §4.1). It never rejects outright — an unauthenticated request becomes an
// anonymous Identity, and it's up to the RBAC gate downstream to reject it.
type Authenticator struct {
	db           *db.Queries
	issuer       *TokenIssuer
	apikeys      *APIKeyAuthenticator
	isProduction bool
	logger       *slog.Logger
}

func NewAuthenticator(queries *db.Queries, pool db.DBTX, issuer *TokenIssuer, isProduction bool, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		db:           queries,
		issuer:       issuer,
		apikeys:      &APIKeyAuthenticator{DB: pool},
		isProduction: isProduction,
		logger:       logger,
	}
}

// Middleware returns the authenticator HTTP middleware, the first stage in
// the request pipeline after the error boundary, ahead of the CSRF guard.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ExemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), &Identity{Method: MethodAnonymous})))
				return
			}

			identity := a.authenticate(r)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), identity)))
		})
	}
}

// authenticate runs the precedence chain, first match wins: dev header (non-
// production only) -> X-API-Key -> Authorization: Bearer (API key prefix or
// RS256 JWT) -> anonymous.
func (a *Authenticator) authenticate(r *http.Request) *Identity {
	if !a.isProduction {
		if id := a.devHeader(r); id != nil {
			return id
		}
	}

	if rawKey := r.Header.Get("X-API-Key"); rawKey != "" {
		if id := a.apiKey(r, rawKey); id != nil {
			return id
		}
		return &Identity{Method: MethodAnonymous}
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		rawToken, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			rawToken, ok = strings.CutPrefix(authHeader, "bearer ")
		}
		if ok {
			rawToken = strings.TrimSpace(rawToken)
			if strings.HasPrefix(rawToken, apiKeyPrefix) {
				if id := a.apiKey(r, rawToken); id != nil {
					return id
				}
				return &Identity{Method: MethodAnonymous}
			}
			if id := a.jwt(r, rawToken); id != nil {
				return id
			}
		}
	}

	return &Identity{Method: MethodAnonymous}
}

// devHeader implements the test-harness fallback (spec.md §4.1 step 1):
// X-User-ID / X-Org-ID / X-Role, role defaulting to org_owner. Callers must
// never construct an Authenticator with isProduction=false in a production
// deployment, since this path performs no real authentication.
func (a *Authenticator) devHeader(r *http.Request) *Identity {
	rawUserID := r.Header.Get("X-User-ID")
	if rawUserID == "" {
		return nil
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil
	}
	orgID, err := uuid.Parse(r.Header.Get("X-Org-ID"))
	if err != nil {
		return nil
	}
	role := model.Role(r.Header.Get("X-Role"))
	if role == "" {
		role = model.RoleOwner
	}
	return &Identity{UserID: &userID, OrgID: orgID, Role: role, Method: MethodDevHeader}
}

func (a *Authenticator) apiKey(r *http.Request, rawKey string) *Identity {
	result, err := a.apikeys.Authenticate(r.Context(), rawKey)
	if err != nil {
		a.logger.Warn("API key authentication failed", "error", err)
		return nil
	}
	return &Identity{OrgID: result.OrgID, Role: result.Role, APIKeyID: &result.APIKeyID, Method: MethodAPIKey}
}

// jwt verifies rawToken and resolves it against the current DB membership
// row, detecting a stale JWT (spec.md §4.1 step 3): the membership is looked
// up in the token's org_id, and if the token's role disagrees with that row,
// the DB role wins and RoleStale is set so callers never elevate privilege
// off a claim that's since been revoked. The token's org_id is not compared
// against any other org of the user; a user with no membership in it, like a
// deleted user, authenticates as anonymous.
func (a *Authenticator) jwt(r *http.Request, rawToken string) *Identity {
	claims, err := a.issuer.Verify(rawToken)
	if err != nil {
		a.logger.Debug("JWT verification failed", "error", err)
		return nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil
	}
	tokenOrgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return nil
	}

	user, err := a.db.GetUserByID(r.Context(), userID)
	if err != nil {
		a.logger.Debug("JWT subject not found", "user_id", userID, "error", err)
		return nil
	}
	if user.Status == model.UserDeleted {
		return &Identity{Method: MethodAnonymous}
	}

	membership, err := a.db.GetUserOrganization(r.Context(), userID, tokenOrgID)
	if err != nil {
		a.logger.Debug("JWT org membership not found", "user_id", userID, "org_id", tokenOrgID, "error", err)
		return &Identity{Method: MethodAnonymous}
	}

	identity := &Identity{UserID: &userID, OrgID: membership.OrgID, Role: membership.Role, Method: MethodJWT}
	if membership.Role != claims.Role {
		identity.RoleStale = true
	}
	return identity
}
