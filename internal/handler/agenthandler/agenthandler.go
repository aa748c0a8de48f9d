// Package agenthandler implements the external-agent invoke endpoint
// (spec.md §6: "POST /external-agents/{id}/invoke") and its invocation
// history listing.
package agenthandler

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/audit"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/invocation"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/rbac"
	"github.com/integrum-global/kaizen-studio/internal/telemetry"
)

type Handler struct {
	db       *db.Queries
	pipeline *invocation.Pipeline
	audit    *audit.Writer
	metrics  *telemetry.Metrics
}

func New(queries *db.Queries, pipeline *invocation.Pipeline, auditWriter *audit.Writer, metrics *telemetry.Metrics) *Handler {
	return &Handler{db: queries, pipeline: pipeline, audit: auditWriter, metrics: metrics}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/invoke", h.handleInvoke)
	r.Get("/{id}/invocations", h.handleListInvocations)
	return r
}

type invokeRequest struct {
	Payload    json.RawMessage `json:"payload" validate:"required"`
	ApprovalID *uuid.UUID      `json:"approval_id,omitempty"`
}

type invokeResponse struct {
	Invocation *model.ExternalAgentInvocation `json:"invocation"`
}

type pendingApprovalResponse struct {
	Approval *model.ApprovalRequest `json:"approval"`
}

// handleInvoke runs the full governance pipeline for one external-agent
// call: RBAC/ABAC, rate limiting, budget enforcement, dispatch, lineage,
// and webhook fan-out (spec.md §4.7). Returns 200 on completion, 202 when
// the call is held for approval, 403/429 on the corresponding denial.
func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid external agent id"))
		return
	}

	var body invokeRequest
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	identity := auth.FromContext(r.Context())

	if _, err := h.db.GetExternalAgentByID(r.Context(), identity.OrgID, agentID); err != nil {
		httpserver.RespondError(w, r, apierr.NotFound("external agent not found"))
		return
	}

	req := invocation.Request{
		OrgID:      identity.OrgID,
		AgentID:    agentID,
		Identity:   identity,
		External:   invocation.FromContext(r.Context()),
		Payload:    body.Payload,
		RequestIP:  clientIP(r),
		UserAgent:  r.Header.Get("User-Agent"),
		ApprovalID: body.ApprovalID,
	}

	started := time.Now()
	outcome, apiErr := h.pipeline.Invoke(r.Context(), req)
	h.metrics.ExecutionDuration.WithLabelValues(agentID.String()).Observe(time.Since(started).Seconds())

	if apiErr != nil {
		h.metrics.ExecutionsTotal.WithLabelValues(identity.OrgID.String(), agentID.String(), "denied").Inc()
		h.audit.LogFromRequest(r, "external_agent.invoke", "external_agent", strPtr(agentID.String()), nil, apiErr.HTTPStatus())
		httpserver.RespondError(w, r, apiErr)
		return
	}

	if outcome.PendingApproval != nil {
		h.metrics.ExecutionsTotal.WithLabelValues(identity.OrgID.String(), agentID.String(), "pending_approval").Inc()
		h.audit.LogFromRequest(r, "external_agent.invoke.pending_approval", "external_agent", strPtr(agentID.String()), nil, http.StatusAccepted)
		httpserver.Respond(w, http.StatusAccepted, pendingApprovalResponse{Approval: outcome.PendingApproval})
		return
	}

	h.metrics.ExecutionsTotal.WithLabelValues(identity.OrgID.String(), agentID.String(), string(outcome.Invocation.Status)).Inc()
	h.audit.LogFromRequest(r, "external_agent.invoke", "external_agent", strPtr(agentID.String()), nil, http.StatusOK)
	httpserver.Respond(w, http.StatusOK, invokeResponse{Invocation: outcome.Invocation})
}

// handleListInvocations returns a cursor-paginated page of an agent's
// invocation history, newest first. Keyset pagination on (invoked_at, id)
// keeps the page stable under concurrent inserts, unlike an offset count
// that can skip or repeat rows as new invocations land.
func (h *Handler) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if apiErr := rbac.Check(identity.IsAnonymous(), identity.Role, "agents:read"); apiErr != nil {
		httpserver.RespondError(w, r, apiErr)
		return
	}

	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest("invalid external agent id"))
		return
	}

	params, err := httpserver.ParseCursorParams(r)
	if err != nil {
		httpserver.RespondError(w, r, apierr.BadRequest(err.Error()))
		return
	}

	var afterInvokedAt *time.Time
	var afterID *uuid.UUID
	if params.After != nil {
		afterInvokedAt = &params.After.CreatedAt
		afterID = &params.After.ID
	}

	invs, err := h.db.ListInvocationsForAgent(r.Context(), identity.OrgID, agentID, afterInvokedAt, afterID, params.Limit+1)
	if err != nil {
		httpserver.RespondError(w, r, apierr.Internal("listing invocations failed"))
		return
	}

	page := httpserver.NewCursorPage(invs, params.Limit, func(inv *model.ExternalAgentInvocation) httpserver.Cursor {
		return httpserver.Cursor{CreatedAt: inv.InvokedAt, ID: inv.ID}
	})
	httpserver.Respond(w, http.StatusOK, page)
}

func strPtr(s string) *string { return &s }

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
