// Package invitationhandler implements org invitation create/accept
// (spec.md §6: "POST /invitations", "POST /invitations/{token}/accept").
package invitationhandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/audit"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/rbac"
)

const invitationTTL = 7 * 24 * time.Hour

type Handler struct {
	db    *db.Queries
	audit *audit.Writer
}

func New(queries *db.Queries, auditWriter *audit.Writer) *Handler {
	return &Handler{db: queries, audit: auditWriter}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Post("/{token}/accept", h.handleAccept)
	return r
}

// handleList returns a page of the caller's org invitations, newest first
// (spec.md §4.2: users:invite is org_admin+, the same permission that gates
// issuing one).
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if apiErr := rbac.Check(identity.IsAnonymous(), identity.Role, "users:invite"); apiErr != nil {
		httpserver.RespondError(w, r, apiErr)
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest(err.Error()))
		return
	}

	invs, total, err := h.db.ListInvitations(r.Context(), identity.OrgID, params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("listing invitations failed"))
		return
	}
	for _, inv := range invs {
		inv.Token = ""
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(invs, params, total))
}

type createRequest struct {
	Email string     `json:"email" validate:"required,email"`
	Role  model.Role `json:"role" validate:"required,oneof=org_owner org_admin developer viewer"`
}

type createResponse struct {
	*model.Invitation
}

// handleCreate issues a single-use invitation token, visible only in this
// response (spec.md §4.2: users:invite is org_admin+).
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if apiErr := rbac.Check(identity.IsAnonymous(), identity.Role, "users:invite"); apiErr != nil {
		httpserver.RespondError(w, r, apiErr)
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	inv := &model.Invitation{
		ID:        uuid.New(),
		OrgID:     identity.OrgID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: *identity.UserID,
		Token:     uuid.NewString(),
		Status:    model.InvitationPending,
		ExpiresAt: time.Now().Add(invitationTTL),
	}
	if err := h.db.CreateInvitation(r.Context(), inv); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating invitation failed"))
		return
	}

	h.audit.LogFromRequest(r, "invitation.create", "invitation", strPtr(inv.ID.String()), nil, http.StatusCreated)

	httpserver.Respond(w, http.StatusCreated, createResponse{inv})
}

type acceptRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type acceptResponse struct {
	User *model.User `json:"user"`
}

// handleAccept creates the invited user's account with the role the
// invitation carries. The accept is guarded against replay by
// MarkInvitationAccepted's conditional update, which affects at most one
// row ever.
func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req acceptRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	inv, err := h.db.GetInvitationByToken(r.Context(), token)
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid or expired invitation"))
		return
	}
	if inv.Status != model.InvitationPending || time.Now().After(inv.ExpiresAt) {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid or expired invitation"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("hashing password failed"))
		return
	}
	hashStr := string(hash)

	userID := uuid.New()
	user := &model.User{
		ID:                    userID,
		Email:                 inv.Email,
		Name:                  req.Name,
		PasswordHash:          &hashStr,
		Status:                model.UserActive,
		PrimaryOrganizationID: &inv.OrgID,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating user failed"))
		return
	}

	membership := &model.UserOrganization{
		UserID:    userID,
		OrgID:     inv.OrgID,
		Role:      inv.Role,
		IsPrimary: true,
		JoinedVia: model.JoinedViaInvitation,
	}
	if err := h.db.CreateUserOrganization(r.Context(), membership); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating membership failed"))
		return
	}

	accepted, err := h.db.MarkInvitationAccepted(r.Context(), inv.ID)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("marking invitation accepted failed"))
		return
	}
	if !accepted {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid or expired invitation"))
		return
	}

	h.audit.Log(audit.Entry{
		OrgID:        inv.OrgID,
		UserID:       &userID,
		Action:       "invitation.accept",
		ResourceType: "user",
		ResourceID:   strPtr(userID.String()),
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.Header.Get("User-Agent"),
		Status:       model.AuditSuccess,
	})

	httpserver.Respond(w, http.StatusCreated, acceptResponse{User: user})
}

func strPtr(s string) *string { return &s }
