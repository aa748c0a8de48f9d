// Package audithandler implements the audit log read endpoint (spec.md §6:
// "GET /audit/logs"). audit:read is org_admin+ (spec.md §4.2).
package audithandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/rbac"
)

const (
	defaultLimit = 25
	maxLimit     = 100
)

type Handler struct {
	db *db.Queries
}

func New(queries *db.Queries) *Handler {
	return &Handler{db: queries}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/logs", h.handleList)
	return r
}

type listResponse struct {
	Items  []*model.AuditLog `json:"items"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// handleList returns a page of the caller's organization's audit log,
// filtered by the query parameters spec.md §6 names. organization_id is
// accepted but ignored beyond validating it matches the caller's own org —
// there is no cross-tenant audit read in this model.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if apiErr := rbac.Check(identity.IsAnonymous(), identity.Role, "audit:read"); apiErr != nil {
		httpserver.RespondError(w, r, apiErr)
		return
	}

	q := r.URL.Query()

	if orgParam := q.Get("organization_id"); orgParam != "" {
		orgID, err := uuid.Parse(orgParam)
		if err != nil || orgID != identity.OrgID {
			httpserver.RespondError(w, r, apierr.Forbidden("organization_id must match the caller's organization"))
			return
		}
	}

	filter := db.AuditLogFilter{OrgID: identity.OrgID, Limit: defaultLimit}

	if v := q.Get("user_id"); v != "" {
		userID, err := uuid.Parse(v)
		if err != nil {
			httpserver.RespondError(w, r, apierr.BadRequest("invalid user_id"))
			return
		}
		filter.UserID = &userID
	}
	if v := q.Get("action"); v != "" {
		filter.Action = &v
	}
	if v := q.Get("resource_type"); v != "" {
		filter.ResourceType = &v
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpserver.RespondError(w, r, apierr.BadRequest("invalid start_date, must be RFC3339"))
			return
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpserver.RespondError(w, r, apierr.BadRequest("invalid end_date, must be RFC3339"))
			return
		}
		filter.EndDate = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpserver.RespondError(w, r, apierr.BadRequest("limit must be a positive integer"))
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpserver.RespondError(w, r, apierr.BadRequest("offset must be a non-negative integer"))
			return
		}
		filter.Offset = n
	}

	logs, err := h.db.ListAuditLogs(r.Context(), filter)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("listing audit logs failed"))
		return
	}

	httpserver.Respond(w, http.StatusOK, listResponse{Items: logs, Limit: filter.Limit, Offset: filter.Offset})
}
