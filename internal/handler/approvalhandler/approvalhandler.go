// Package approvalhandler implements the approval decision endpoint
// (spec.md §6: "POST /approvals/{id}/decide"). It is the only way an
// invocation held pending by internal/approval can ever be unblocked and
// re-invoked with its approval_id (spec.md §4.7 step 6).
package approvalhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/approval"
	"github.com/integrum-global/kaizen-studio/internal/audit"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

type Handler struct {
	approvals *approval.Manager
	audit     *audit.Writer
}

func New(approvals *approval.Manager, auditWriter *audit.Writer) *Handler {
	return &Handler{approvals: approvals, audit: auditWriter}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/decide", h.handleDecide)
	return r
}

type decideRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

type decideResponse struct {
	*model.ApprovalRequest
}

// handleDecide approves or rejects a pending approval request. The handler
// itself only rejects anonymous callers and API-key principals; the
// "approvals:decide" permission is checked by Manager.Decide, before it
// touches the store, so the rule holds for every caller.
func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity.IsAnonymous() {
		httpserver.RespondError(w, r, apierr.Unauthorized("authentication required"))
		return
	}
	if identity.UserID == nil {
		httpserver.RespondError(w, r, apierr.Forbidden("approval decisions require a user principal, not an API key"))
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid approval request id"))
		return
	}

	var body decideRequest
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	decided, err := h.approvals.Decide(r.Context(), identity.OrgID, requestID, *identity.UserID, identity.Role, body.Approve, body.Note)
	if err != nil {
		apiErr := decideError(err)
		h.audit.LogFromRequest(r, "approval.decide", "approval_request", strPtr(requestID.String()), nil, apiErr.HTTPStatus())
		httpserver.RespondError(w, r, apiErr)
		return
	}

	h.audit.LogFromRequest(r, "approval.decide", "approval_request", strPtr(requestID.String()), nil, http.StatusOK)
	httpserver.Respond(w, http.StatusOK, decideResponse{decided})
}

// decideError maps approval's sentinel errors to the API error taxonomy.
// An unrecognized error (a wrapped Postgres failure) falls back to 500.
func decideError(err error) *apierr.Error {
	switch {
	case errors.Is(err, approval.ErrUnauthorizedApprover):
		return apierr.Forbidden("principal is not an authorized approver")
	case errors.Is(err, approval.ErrSelfApprovalNotAllowed):
		return apierr.Forbidden("requester cannot approve their own request")
	case errors.Is(err, approval.ErrApprovalNotFound):
		return apierr.NotFound("approval request not found")
	case errors.Is(err, approval.ErrAlreadyDecided):
		return apierr.Conflict("approval request has already been decided")
	case errors.Is(err, approval.ErrApprovalExpired):
		return apierr.Conflict("approval request has expired")
	default:
		return apierr.Internal("deciding approval request failed")
	}
}

func strPtr(s string) *string { return &s }
