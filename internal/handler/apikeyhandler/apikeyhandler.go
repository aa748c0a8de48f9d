// Package apikeyhandler implements API key lifecycle endpoints (spec.md §6:
// "POST /api-keys"). Revocation is mounted here too since it shares the
// same resource and permission ("api_keys:revoke").
package apikeyhandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/audit"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/rbac"
)

type Handler struct {
	db      *db.Queries
	apiKeys *auth.APIKeyAuthenticator
	audit   *audit.Writer
}

func New(queries *db.Queries, apiKeys *auth.APIKeyAuthenticator, auditWriter *audit.Writer) *Handler {
	return &Handler{db: queries, apiKeys: apiKeys, audit: auditWriter}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Delete("/{id}", h.handleRevoke)
	return r
}

type createRequest struct {
	Name      string     `json:"name" validate:"required"`
	Scopes    []string   `json:"scopes" validate:"required,min=1"`
	RateLimit int        `json:"rate_limit" validate:"required,gte=1"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type createResponse struct {
	APIKey     *model.APIKey `json:"api_key"`
	PlaintextKey string      `json:"key"`
}

// handleCreate mints a new API key. The plaintext is returned exactly once;
// only its bcrypt hash and 8-char prefix are persisted.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if apiErr := rbac.Check(identity.IsAnonymous(), identity.Role, "api_keys:create"); apiErr != nil {
		httpserver.RespondError(w, r, apiErr)
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	plaintext, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("generating api key failed"))
		return
	}

	key := &model.APIKey{
		ID:        uuid.New(),
		OrgID:     identity.OrgID,
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Scopes:    req.Scopes,
		RateLimit: req.RateLimit,
		ExpiresAt: req.ExpiresAt,
		Status:    model.APIKeyActive,
	}
	if err := h.db.CreateAPIKey(r.Context(), key); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating api key failed"))
		return
	}

	h.audit.LogFromRequest(r, "api_key.create", "api_key", strPtr(key.ID.String()), nil, http.StatusCreated)

	httpserver.Respond(w, http.StatusCreated, createResponse{APIKey: key, PlaintextKey: plaintext})
}

// handleRevoke transitions an API key to revoked. Revocation is terminal
// and idempotent from the caller's point of view.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if apiErr := rbac.Check(identity.IsAnonymous(), identity.Role, "api_keys:revoke"); apiErr != nil {
		httpserver.RespondError(w, r, apiErr)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid api key id"))
		return
	}

	if err := h.db.RevokeAPIKey(r.Context(), id); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("revoking api key failed"))
		return
	}

	h.audit.LogFromRequest(r, "api_key.revoke", "api_key", strPtr(id.String()), nil, http.StatusNoContent)

	w.WriteHeader(http.StatusNoContent)
}

func strPtr(s string) *string { return &s }
