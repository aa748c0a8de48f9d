package invocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/abac"
	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/approval"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/budget"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/lineage"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/ratelimit"
	"github.com/integrum-global/kaizen-studio/internal/rbac"
)

// maxSnapshotBytes bounds how much of the request payload is retained as a
// lineage/invocation snapshot.
const maxSnapshotBytes = 64 * 1024

// WebhookEnqueuer hands a terminal invocation to the webhook fan-out worker.
// Implemented by internal/webhook.Dispatcher; declared here so the pipeline
// doesn't import the adapter package directly.
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, inv *model.ExternalAgentInvocation)
}

// Pipeline wires every governance stage spec.md §4.7 names into one
// end-to-end invocation flow.
type Pipeline struct {
	db         *db.Queries
	rate       *ratelimit.TieredLimiter
	budget     *budget.Enforcer
	approvals  *approval.Manager
	dispatcher *Dispatcher
	lineage    *lineage.Writer
	webhooks   WebhookEnqueuer
}

func NewPipeline(queries *db.Queries, rate *ratelimit.TieredLimiter, budgetEnforcer *budget.Enforcer, approvals *approval.Manager, dispatcher *Dispatcher, lineageWriter *lineage.Writer, webhooks WebhookEnqueuer) *Pipeline {
	return &Pipeline{
		db:         queries,
		rate:       rate,
		budget:     budgetEnforcer,
		approvals:  approvals,
		dispatcher: dispatcher,
		lineage:    lineageWriter,
		webhooks:   webhooks,
	}
}

// Request is the caller-facing input to Invoke.
type Request struct {
	OrgID      uuid.UUID
	AgentID    uuid.UUID
	Identity   *auth.Identity
	External   ExternalIdentity
	Payload    json.RawMessage
	RequestIP  string
	UserAgent  string
	ApprovalID *uuid.UUID // set when the caller is re-invoking after approval
}

// Outcome is what the handler renders back to the caller.
type Outcome struct {
	Invocation     *model.ExternalAgentInvocation
	PendingApproval *model.ApprovalRequest // non-nil => render 202
}

// Invoke runs the full pipeline for one external-agent invocation request.
// Stages 1-2 (authenticate, extract external identity) are the caller's
// responsibility via Request's fields; this method covers RBAC/ABAC through
// webhook enqueue (spec.md §4.7 steps 3-12).
func (p *Pipeline) Invoke(ctx context.Context, req Request) (*Outcome, *apierr.Error) {
	if err := p.authorize(ctx, req); err != nil {
		return nil, err
	}

	invocationID := uuid.New()

	scope := fmt.Sprintf("%s:%s", req.AgentID, principalScope(req.Identity))
	tiers := []ratelimit.Tier{
		{Name: "minute", Window: time.Minute, Limit: 60},
		{Name: "hour", Window: time.Hour, Limit: 1000},
		{Name: "day", Window: 24 * time.Hour, Limit: 10000},
	}
	rateResult, err := p.rate.Check(ctx, scope, tiers)
	if err != nil {
		return nil, apierr.Internal("rate limiter unavailable")
	}
	if !rateResult.Allowed {
		return nil, apierr.RateLimited(int(time.Until(rateResult.ResetAt).Seconds()))
	}

	agent, err2 := p.db.GetExternalAgentByID(ctx, req.OrgID, req.AgentID)
	if err2 != nil {
		return nil, apierr.NotFound("external agent not found")
	}

	estimate := budget.Estimate{EstimatedTokens: estimateTokens(req.Payload)}
	var costUSD float64
	var budgets []*model.Budget

	if req.ApprovalID == nil {
		var budErr error
		budgets, budErr = p.db.ListBudgetsForAgent(ctx, req.AgentID)
		if budErr != nil {
			return nil, apierr.Internal("budget lookup failed")
		}
		// Every configured period (daily, weekly, monthly) is its own
		// independent cap; a call only proceeds if it fits under all of
		// them, not just whichever one happens to be looked up first.
		for _, bud := range budgets {
			checkResult, checkErr := p.budget.CheckBudget(ctx, bud, estimate)
			if checkErr != nil {
				return nil, apierr.Internal("budget check failed")
			}
			if !checkResult.Allowed {
				return nil, checkResult.Err
			}
			if bud.Period == model.BudgetDaily || costUSD == 0 {
				costUSD = checkResult.ProjectedCost
			}
			if checkResult.Warning && requiresApproval(agent, checkResult) {
				approvalReq, reqErr := p.requestApproval(ctx, req, invocationID, checkResult)
				if reqErr != nil {
					return nil, apierr.Internal("creating approval request failed")
				}
				return &Outcome{PendingApproval: approvalReq}, nil
			}
		}
	} else {
		decided, approvalErr := p.approvals.Get(ctx, req.OrgID, *req.ApprovalID)
		if approvalErr != nil {
			return nil, apierr.NotFound("approval request not found")
		}
		if decided.Status != model.ApprovalApproved {
			return nil, apierr.Forbidden("approval request is not approved")
		}
	}

	inv := &model.ExternalAgentInvocation{
		ID:                    invocationID,
		OrgID:                 req.OrgID,
		ExternalAgentID:       req.AgentID,
		UserID:                req.Identity.UserID,
		RequestPayload:        truncate(req.Payload),
		RequestIP:             req.RequestIP,
		RequestUserAgent:      req.UserAgent,
		AuthPassed:            true,
		BudgetPassed:          true,
		RateLimitPassed:       true,
		Status:                model.InvocationPending,
		TraceID:               req.External.TraceID,
		WebhookDeliveryStatus: model.WebhookDeliveryPending,
	}
	if err := p.db.CreateInvocation(ctx, inv); err != nil {
		return nil, apierr.Internal("recording invocation failed")
	}

	result, dispatchErr := p.dispatcher.Dispatch(ctx, agent, req.Payload)
	p.complete(ctx, inv, result, dispatchErr)

	usage := &model.UsageRecord{
		OrgID:        req.OrgID,
		ResourceType: "tokens",
		Quantity:     float64(estimate.EstimatedTokens),
		Unit:         "tokens",
		UnitCost:     0,
		TotalCost:    costUSD,
	}
	if err := p.budget.RecordUsage(ctx, inv.ID, usage, budgets); err != nil {
		// Audit completeness still matters more than failing the response
		// (spec.md §4.7 ordering guarantee for steps 10-11 even on failure).
		_ = err
	}

	// Lineage/webhook writes run after the invocation is already terminal and
	// must not delay the response on a client cancellation (spec.md §5).
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.lineage.Write(detached, p.buildLineage(req, inv, costUSD, estimate.EstimatedTokens)); err != nil {
		_ = err
	}

	if p.webhooks != nil {
		p.webhooks.Enqueue(ctx, inv)
	}

	return &Outcome{Invocation: inv}, nil
}

func (p *Pipeline) authorize(ctx context.Context, req Request) *apierr.Error {
	if req.Identity.IsAnonymous() {
		return apierr.Unauthorized("authentication required")
	}
	if rbacErr := rbac.Check(false, req.Identity.Role, "agents:invoke"); rbacErr != nil {
		return rbacErr
	}

	principals := []db.PolicyPrincipal{{Type: model.PrincipalRole, ID: string(req.Identity.Role)}}
	if req.Identity.UserID != nil {
		principals = append(principals, db.PolicyPrincipal{Type: model.PrincipalUser, ID: req.Identity.UserID.String()})
	}
	policies, err := p.db.ListActivePoliciesForPrincipals(ctx, req.OrgID.String(), principals)
	if err != nil {
		return apierr.Internal("policy lookup failed")
	}

	applicable := make([]*model.Policy, 0, len(policies))
	for _, pol := range policies {
		if pol.ResourceType == "external_agent" && (pol.Action == "invoke" || pol.Action == "*") {
			applicable = append(applicable, pol)
		}
	}

	attrs := abac.Attrs{
		Subject:     abac.AttrsFromIdentity(identityID(req.Identity), req.OrgID.String(), string(req.Identity.Role)),
		Resource:    map[string]any{"type": "external_agent", "id": req.AgentID.String()},
		Environment: map[string]any{},
	}
	decision := abac.Evaluate(applicable, attrs)
	if decision.Err != nil {
		return apierr.Internal("policy evaluation failed")
	}
	if decision.Effect == abac.Deny {
		return apierr.ForbiddenByPolicy("denied by policy")
	}
	return nil
}

func (p *Pipeline) requestApproval(ctx context.Context, req Request, invocationID uuid.UUID, check budget.CheckResult) (*model.ApprovalRequest, error) {
	reason := fmt.Sprintf("projected cost %.4f crosses configured threshold", check.ProjectedCost)
	return p.approvals.Request(ctx, req.OrgID, invocationID, req.Identity.UserID, reason, approval.DefaultTTL)
}

func (p *Pipeline) complete(ctx context.Context, inv *model.ExternalAgentInvocation, result DispatchResult, dispatchErr error) {
	started := inv.InvokedAt
	elapsed := time.Since(started).Milliseconds()
	inv.ExecutionTimeMs = &elapsed

	if dispatchErr != nil {
		inv.Status = model.InvocationFailed
		inv.WebhookDeliveryStatus = model.WebhookDeliveryPending
	} else {
		status := result.StatusCode
		inv.ResponseStatusCode = &status
		inv.ResponsePayload = truncate(result.Body)
		if status < 400 {
			inv.Status = model.InvocationSuccess
		} else {
			inv.Status = model.InvocationFailed
		}
	}

	if err := p.db.CompleteInvocation(ctx, inv); err != nil {
		_ = err
	}
}

func (p *Pipeline) buildLineage(req Request, inv *model.ExternalAgentInvocation, costUSD float64, tokens int64) *model.InvocationLineage {
	return &model.InvocationLineage{
		ID:                inv.ID,
		ExternalUserID:    req.External.UserID,
		ExternalUserEmail: req.External.UserEmail,
		ExternalUserName:  req.External.UserName,
		ExternalSystem:    req.External.System,
		ExternalSessionID: req.External.SessionID,
		APIKeyID:          req.Identity.APIKeyID,
		OrgID:             req.OrgID,
		ExternalAgentID:   req.AgentID,
		TraceID:           req.External.TraceID,
		RequestSnapshot:   inv.RequestPayload,
		ResponseSnapshot:  inv.ResponsePayload,
		CostUSD:           costUSD,
		Tokens:            tokens,
		Status:            inv.Status,
		BudgetChecked:     inv.BudgetPassed,
		ApprovalGranted:   req.ApprovalID != nil,
	}
}

func principalScope(id *auth.Identity) string {
	if id.UserID != nil {
		return id.UserID.String()
	}
	if id.APIKeyID != nil {
		return id.APIKeyID.String()
	}
	return "anonymous"
}

func identityID(id *auth.Identity) string {
	if id.UserID != nil {
		return id.UserID.String()
	}
	return ""
}

func estimateTokens(payload json.RawMessage) int64 {
	return int64(len(payload)) / 4
}

func requiresApproval(agent *model.ExternalAgent, check budget.CheckResult) bool {
	return check.ThresholdHit >= 0.9
}

func truncate(data []byte) []byte {
	if len(data) <= maxSnapshotBytes {
		return data
	}
	return data[:maxSnapshotBytes]
}
