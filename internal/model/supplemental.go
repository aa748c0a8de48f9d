package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity shapes supplemented from original_source/ (spec.md's distillation
// leaves these out, but the original system models them; SPEC_FULL.md keeps
// them as read/write entity shapes rather than full enforcement surfaces).

// Workspace groups teams, pipelines, and agents under an organization.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkspaceMember attaches a user to a workspace with a workspace-scoped role.
type WorkspaceMember struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkspaceWorkUnit is a schedulable unit of work within a workspace.
type WorkspaceWorkUnit struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team is an org-scoped grouping used as a PolicyAssignment PrincipalType.
type Team struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamMembership struct {
	TeamID    uuid.UUID `json:"team_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Agent is an internal (non-external) agent definition — distinct from
// ExternalAgent, which represents a third-party platform binding.
type Agent struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"org_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AgentVersion is one immutable published revision of an Agent's definition.
type AgentVersion struct {
	ID        uuid.UUID       `json:"id"`
	AgentID   uuid.UUID       `json:"agent_id"`
	Version   int             `json:"version"`
	Manifest  json.RawMessage `json:"manifest"`
	CreatedAt time.Time       `json:"created_at"`
}

// AgentTool declares a capability an Agent is permitted to invoke.
type AgentTool struct {
	ID       uuid.UUID `json:"id"`
	AgentID  uuid.UUID `json:"agent_id"`
	ToolName string    `json:"tool_name"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// AgentContext is a scoped piece of context (memory, document, variable set)
// attached to an Agent at invocation time.
type AgentContext struct {
	ID        uuid.UUID       `json:"id"`
	AgentID   uuid.UUID       `json:"agent_id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

// Pipeline is a directed graph of PipelineNodes connected by
// PipelineConnections, owned by a workspace.
type Pipeline struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PipelineNode struct {
	ID         uuid.UUID       `json:"id"`
	PipelineID uuid.UUID       `json:"pipeline_id"`
	Kind       string          `json:"kind"`
	Config     json.RawMessage `json:"config,omitempty"`
	PositionX  float64         `json:"position_x"`
	PositionY  float64         `json:"position_y"`
}

type PipelineConnection struct {
	ID           uuid.UUID `json:"id"`
	PipelineID   uuid.UUID `json:"pipeline_id"`
	FromNodeID   uuid.UUID `json:"from_node_id"`
	ToNodeID     uuid.UUID `json:"to_node_id"`
}

// Gateway/Deployment model the promotion path an agent or pipeline takes
// from a staging environment into production.
type Deployment struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"org_id"`
	AgentID     *uuid.UUID `json:"agent_id,omitempty"`
	PipelineID  *uuid.UUID `json:"pipeline_id,omitempty"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DeploymentLog struct {
	ID           uuid.UUID `json:"id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	Message      string    `json:"message"`
	Level        string    `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
}

// Connector/ConnectorInstance model reusable third-party integration
// definitions an org can bind into pipelines or agents.
type Connector struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"org_id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

type ConnectorInstance struct {
	ID                   uuid.UUID `json:"id"`
	ConnectorID          uuid.UUID `json:"connector_id"`
	Name                 string    `json:"name"`
	EncryptedCredentials string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
}

// ScalingPolicy/ScalingEvent record autoscaling configuration and history for
// a Deployment.
type ScalingPolicy struct {
	ID             uuid.UUID `json:"id"`
	DeploymentID   uuid.UUID `json:"deployment_id"`
	MinReplicas    int       `json:"min_replicas"`
	MaxReplicas    int       `json:"max_replicas"`
	TargetMetric   string    `json:"target_metric"`
	TargetValue    float64   `json:"target_value"`
}

type ScalingEvent struct {
	ID           uuid.UUID `json:"id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	FromReplicas int       `json:"from_replicas"`
	ToReplicas   int       `json:"to_replicas"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// Promotion/PromotionRule model the approval gate a Deployment passes
// through when advancing between environments.
type Promotion struct {
	ID             uuid.UUID `json:"id"`
	DeploymentID   uuid.UUID `json:"deployment_id"`
	FromEnvironment string   `json:"from_environment"`
	ToEnvironment  string    `json:"to_environment"`
	Status         string    `json:"status"`
	RequestedBy    uuid.UUID `json:"requested_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type PromotionRule struct {
	ID              uuid.UUID `json:"id"`
	OrgID           uuid.UUID `json:"org_id"`
	ToEnvironment   string    `json:"to_environment"`
	RequiresApproval bool     `json:"requires_approval"`
	MinApprovers    int       `json:"min_approvers"`
}

// UsageQuota/BillingPeriod track org-level (not just per-agent) spend caps
// across a billing cycle.
type UsageQuota struct {
	OrgID          uuid.UUID `json:"org_id"`
	MaxCostMonthly float64   `json:"max_cost_monthly"`
	CreatedAt      time.Time `json:"created_at"`
}

type BillingPeriod struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	TotalCost float64   `json:"total_cost"`
}

// TestExecution/ExecutionMetric record CI-style test runs against an Agent
// version, independent of production ExternalAgentInvocation traffic.
type TestExecution struct {
	ID             uuid.UUID `json:"id"`
	AgentVersionID uuid.UUID `json:"agent_version_id"`
	Status         string    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type ExecutionMetric struct {
	ID              uuid.UUID `json:"id"`
	TestExecutionID uuid.UUID `json:"test_execution_id"`
	Name            string    `json:"name"`
	Value           float64   `json:"value"`
}

// Trust read-model: chains of delegated authority, surfaced for audit
// review. No delegation-evaluation logic is implemented — these are
// read-only records, not one of the named enforcement operations.
type TrustAuthority struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

type TrustChain struct {
	ID          uuid.UUID `json:"id"`
	AuthorityID uuid.UUID `json:"authority_id"`
	Depth       int       `json:"depth"`
}

type TrustDelegation struct {
	ID          uuid.UUID `json:"id"`
	ChainID     uuid.UUID `json:"chain_id"`
	FromSubject string    `json:"from_subject"`
	ToSubject   string    `json:"to_subject"`
	Scope       string    `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
}

type TrustAuditAnchor struct {
	ID        uuid.UUID `json:"id"`
	ChainID   uuid.UUID `json:"chain_id"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}
