// Package authhandler implements the auth bootstrap endpoints (spec.md §6):
// register, login, refresh. These run ahead of the authenticator chain —
// they are the CSRF- and auth-exempt paths internal/auth.ExemptPaths names.
package authhandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/audit"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// logAuth records a register/login outcome directly. These routes are
// auth-exempt — there is no resolved auth.Identity on the request context
// for audit.Writer.LogFromRequest to read the principal from.
func (h *Handler) logAuth(r *http.Request, action string, orgID, userID uuid.UUID, statusCode int) {
	status := model.AuditSuccess
	if statusCode >= 400 {
		status = model.AuditFailure
	}
	h.audit.Log(audit.Entry{
		OrgID:        orgID,
		UserID:       &userID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   strPtr(userID.String()),
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.Header.Get("User-Agent"),
		Status:       status,
	})
}

// Handler serves /auth/{register,login,refresh}.
type Handler struct {
	db     *db.Queries
	issuer *auth.TokenIssuer
	audit  *audit.Writer
}

func New(queries *db.Queries, issuer *auth.TokenIssuer, auditWriter *audit.Writer) *Handler {
	return &Handler{db: queries, issuer: issuer, audit: auditWriter}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	return r
}

type registerRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	Name             string `json:"name" validate:"required"`
	OrganizationName string `json:"organization_name" validate:"required"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type registerResponse struct {
	User   *model.User `json:"user"`
	Tokens tokenPair   `json:"tokens"`
}

// handleRegister creates an organization and its first user as org_owner
// (spec.md §6 "POST /auth/register").
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.db.GetUserByEmail(r.Context(), req.Email); err == nil {
		httpserver.RespondError(w, r, apierr.Conflict("an account with this email already exists"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("hashing password failed"))
		return
	}
	hashStr := string(hash)

	org := &model.Organization{
		ID:       uuid.New(),
		Name:     req.OrganizationName,
		Slug:     slugify(req.OrganizationName),
		Status:   model.OrganizationActive,
		PlanTier: model.PlanFree,
	}
	if err := h.db.CreateOrganization(r.Context(), org); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating organization failed"))
		return
	}

	userID := uuid.New()
	user := &model.User{
		ID:                    userID,
		Email:                 req.Email,
		Name:                  req.Name,
		PasswordHash:          &hashStr,
		Status:                model.UserActive,
		PrimaryOrganizationID: &org.ID,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating user failed"))
		return
	}

	membership := &model.UserOrganization{
		UserID:    userID,
		OrgID:     org.ID,
		Role:      model.RoleOwner,
		IsPrimary: true,
		JoinedVia: model.JoinedViaCreated,
	}
	if err := h.db.CreateUserOrganization(r.Context(), membership); err != nil {
		httpserver.RespondError(w, r, apierr.Internal("creating membership failed"))
		return
	}

	access, err := h.issuer.IssueAccessToken(userID, org.ID, model.RoleOwner)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("issuing access token failed"))
		return
	}
	refresh, _, err := h.issuer.IssueRefreshToken(userID)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("issuing refresh token failed"))
		return
	}

	h.logAuth(r, "user.register", org.ID, userID, http.StatusCreated)

	httpserver.Respond(w, http.StatusCreated, registerResponse{
		User:   user,
		Tokens: tokenPair{AccessToken: access, RefreshToken: refresh},
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

// handleLogin verifies credentials and mints a token pair scoped to the
// user's primary organization.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user.Status != model.UserActive || user.PasswordHash == nil {
		httpserver.RespondError(w, r, apierr.Unauthorized("invalid email or password"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		httpserver.RespondError(w, r, apierr.Unauthorized("invalid email or password"))
		return
	}
	if user.PrimaryOrganizationID == nil {
		httpserver.RespondError(w, r, apierr.Forbidden("user has no organization membership"))
		return
	}

	membership, err := h.db.GetUserOrganization(r.Context(), user.ID, *user.PrimaryOrganizationID)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("resolving membership failed"))
		return
	}

	access, err := h.issuer.IssueAccessToken(user.ID, membership.OrgID, membership.Role)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("issuing access token failed"))
		return
	}
	refresh, _, err := h.issuer.IssueRefreshToken(user.ID)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("issuing refresh token failed"))
		return
	}

	h.logAuth(r, "user.login", membership.OrgID, user.ID, http.StatusOK)

	httpserver.Respond(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// handleRefresh mints a new access token from a still-valid refresh token.
// There is no revocation list yet — a refresh token is honored until it
// expires, the same lifetime tradeoff IssueRefreshToken documents.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	claims, err := h.issuer.Verify(req.RefreshToken)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Unauthorized("invalid or expired refresh token"))
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Unauthorized("invalid refresh token subject"))
		return
	}

	user, err := h.db.GetUserByID(r.Context(), userID)
	if err != nil || user.Status != model.UserActive || user.PrimaryOrganizationID == nil {
		httpserver.RespondError(w, r, apierr.Unauthorized("user is no longer active"))
		return
	}

	membership, err := h.db.GetUserOrganization(r.Context(), userID, *user.PrimaryOrganizationID)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("resolving membership failed"))
		return
	}

	access, err := h.issuer.IssueAccessToken(userID, membership.OrgID, membership.Role)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("issuing access token failed"))
		return
	}

	httpserver.Respond(w, http.StatusOK, refreshResponse{AccessToken: access})
}

func strPtr(s string) *string { return &s }

// slugify lowercases name and replaces runs of non-alphanumeric characters
// with a single hyphen. Collisions against an existing slug surface as the
// database's unique constraint violation, not a check here.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-") + "-" + uuid.New().String()[:8]
}
