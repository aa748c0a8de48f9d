// Package model defines the domain entities of the governance control plane
// (spec.md §3). Types here are the canonical in-process representation;
// internal/db converts between these and their Postgres row shapes.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OrganizationStatus string

const (
	OrganizationActive    OrganizationStatus = "active"
	OrganizationSuspended OrganizationStatus = "suspended"
	OrganizationDeleted   OrganizationStatus = "deleted"
)

type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Organization is the top-level tenant. Deletion is always soft: Status
// transitions to OrganizationDeleted, the row is never removed.
type Organization struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	Slug             string             `json:"slug"`
	Status           OrganizationStatus `json:"status"`
	PlanTier         PlanTier           `json:"plan_tier"`
	SSODomain        *string            `json:"sso_domain,omitempty"`
	AllowDomainJoin  bool               `json:"allow_domain_join"`
	Settings         json.RawMessage    `json:"settings,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

type DefaultRole string

const (
	RoleDeveloper DefaultRole = "developer"
	RoleViewer    DefaultRole = "viewer"
)

// OrganizationDomain records a domain verified for auto-join into an org.
type OrganizationDomain struct {
	ID                uuid.UUID   `json:"id"`
	OrgID             uuid.UUID   `json:"org_id"`
	Domain            string      `json:"domain"`
	IsVerified        bool        `json:"is_verified"`
	AutoJoinEnabled   bool        `json:"auto_join_enabled"`
	DefaultRole       DefaultRole `json:"default_role"`
	CreatedAt         time.Time   `json:"created_at"`
}

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInvited   UserStatus = "invited"
	UserSuspended UserStatus = "suspended"
	UserDeleted   UserStatus = "deleted"
)

// User is identified globally by email. Organization membership and
// effective role live in UserOrganization; Role/OrgID on User itself are the
// legacy single-tenant columns preserved for backward reads.
type User struct {
	ID                   uuid.UUID  `json:"id"`
	OrgID                *uuid.UUID `json:"org_id,omitempty"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	PasswordHash         *string    `json:"-"`
	Status               UserStatus `json:"status"`
	Role                 *string    `json:"role,omitempty"`
	MFAEnabled           bool       `json:"mfa_enabled"`
	IsSuperAdmin         bool       `json:"is_super_admin"`
	PrimaryOrganizationID *uuid.UUID `json:"primary_organization_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Role is the fixed set of roles a UserOrganization membership may hold.
// RequireMinRole and the declarative permission matrix in internal/rbac both
// key off these four values.
type Role string

const (
	RoleOwner      Role = "org_owner"
	RoleOrgAdmin   Role = "org_admin"
	RoleDeveloperM Role = "developer"
	RoleViewerM    Role = "viewer"
)

type JoinedVia string

const (
	JoinedViaInvitation  JoinedVia = "invitation"
	JoinedViaSSO         JoinedVia = "sso"
	JoinedViaDomainMatch JoinedVia = "domain_match"
	JoinedViaCreated     JoinedVia = "created"
)

// UserOrganization is the many-to-many join between User and Organization
// that carries the effective role enforced by RBAC/ABAC.
type UserOrganization struct {
	UserID    uuid.UUID `json:"user_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Role      Role      `json:"role"`
	IsPrimary bool      `json:"is_primary"`
	JoinedVia JoinedVia `json:"joined_via"`
	CreatedAt time.Time `json:"created_at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation's Token is shown to the caller exactly once, at creation.
type Invitation struct {
	ID        uuid.UUID        `json:"id"`
	OrgID     uuid.UUID        `json:"org_id"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	InvitedBy uuid.UUID        `json:"invited_by"`
	Token     string           `json:"token,omitempty"`
	Status    InvitationStatus `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
}

type SSOProvider string

const (
	SSOAzure  SSOProvider = "azure"
	SSOGoogle SSOProvider = "google"
	SSOOkta   SSOProvider = "okta"
	SSOAuth0  SSOProvider = "auth0"
	SSOCustom SSOProvider = "custom"
)

// SSOConnection holds per-org SSO provider configuration. ClientSecret is
// stored encrypted (internal/keystore.Cipher) and never serialized.
type SSOConnection struct {
	ID                   uuid.UUID   `json:"id"`
	OrgID                uuid.UUID   `json:"org_id"`
	Provider             SSOProvider `json:"provider"`
	ClientID             string      `json:"client_id"`
	ClientSecretEncrypted string     `json:"-"`
	IsDefault            bool        `json:"is_default"`
	AutoProvision        bool        `json:"auto_provision"`
	DefaultRole          Role        `json:"default_role"`
	AllowedDomains       []string    `json:"allowed_domains,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// UserIdentity links a User to an upstream SSO provider's subject.
type UserIdentity struct {
	UserID         uuid.UUID `json:"user_id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type APIKeyStatus string

const (
	APIKeyActive  APIKeyStatus = "active"
	APIKeyRevoked APIKeyStatus = "revoked"
)

// APIKey's plaintext key is returned exactly once, on creation. Every
// subsequent verification looks the row up by KeyPrefix and then compares
// the supplied key against KeyHash with bcrypt.
type APIKey struct {
	ID          uuid.UUID    `json:"id"`
	OrgID       uuid.UUID    `json:"org_id"`
	Name        string       `json:"name"`
	KeyHash     string       `json:"-"`
	KeyPrefix   string       `json:"key_prefix"`
	Scopes      []string     `json:"scopes"`
	RateLimit   int          `json:"rate_limit"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Status      APIKeyStatus `json:"status"`
	LastUsedAt  *time.Time   `json:"last_used_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Permission is a seeded (resource:action) capability.
type Permission struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Resource string    `json:"resource"`
	Action   string    `json:"action"`
}

// RolePermission is a seeded row of the declarative role-to-permission matrix.
type RolePermission struct {
	Role         Role      `json:"role"`
	PermissionID uuid.UUID `json:"permission_id"`
}

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

type PolicyStatus string

const (
	PolicyActive   PolicyStatus = "active"
	PolicyInactive PolicyStatus = "inactive"
)

// Policy is one ABAC rule. Conditions holds the JSON condition DSL
// (internal/abac.Condition) as raw JSON so it can be lazily parsed and
// cached by the evaluator.
type Policy struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	ResourceType string          `json:"resource_type"`
	Action       string          `json:"action"`
	Effect       PolicyEffect    `json:"effect"`
	Conditions   json.RawMessage `json:"conditions"`
	ResourceRefs []string        `json:"resource_refs,omitempty"`
	Priority     int             `json:"priority"`
	Status       PolicyStatus    `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PrincipalType string

const (
	PrincipalUser PrincipalType = "user"
	PrincipalTeam PrincipalType = "team"
	PrincipalRole PrincipalType = "role"
)

// PolicyAssignment attaches a Policy to a principal.
type PolicyAssignment struct {
	PolicyID      uuid.UUID     `json:"policy_id"`
	PrincipalType PrincipalType `json:"principal_type"`
	PrincipalID   string        `json:"principal_id"`
}

type AgentPlatform string

const (
	PlatformTeams      AgentPlatform = "teams"
	PlatformDiscord    AgentPlatform = "discord"
	PlatformSlack      AgentPlatform = "slack"
	PlatformTelegram   AgentPlatform = "telegram"
	PlatformNotion     AgentPlatform = "notion"
	PlatformCustomHTTP AgentPlatform = "custom_http"
)

type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusDeleted  AgentStatus = "deleted"
)

// ExternalAgent is a registered upstream agent endpoint. EncryptedCredentials
// is sealed with internal/keystore.Cipher; -1 in any *_per_minute/*_daily
// field means "unlimited" (spec.md §3).
type ExternalAgent struct {
	ID                     uuid.UUID       `json:"id"`
	OrgID                  uuid.UUID       `json:"org_id"`
	WorkspaceID            *uuid.UUID      `json:"workspace_id,omitempty"`
	Platform               AgentPlatform   `json:"platform"`
	AuthType               string          `json:"auth_type"`
	EncryptedCredentials   string          `json:"-"`
	PlatformConfig         json.RawMessage `json:"platform_config,omitempty"`
	WebhookURL             *string         `json:"webhook_url,omitempty"`
	BudgetLimitDaily       float64         `json:"budget_limit_daily"`
	BudgetLimitMonthly     float64         `json:"budget_limit_monthly"`
	RateLimitPerMinute     int             `json:"rate_limit_per_minute"`
	RateLimitPerHour       int             `json:"rate_limit_per_hour"`
	Status                 AgentStatus     `json:"status"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

type InvocationStatus string

const (
	InvocationPending InvocationStatus = "pending"
	InvocationSuccess InvocationStatus = "success"
	InvocationFailed  InvocationStatus = "failed"
)

type WebhookDeliveryStatus string

const (
	WebhookDeliveryPending   WebhookDeliveryStatus = "pending"
	WebhookDeliveryDelivered WebhookDeliveryStatus = "delivered"
	WebhookDeliveryFailed    WebhookDeliveryStatus = "failed"
)

// ExternalAgentInvocation is one row per invocation attempt, append-only
// once it reaches a terminal Status (spec.md §3, §5).
type ExternalAgentInvocation struct {
	ID                    uuid.UUID             `json:"id"`
	OrgID                 uuid.UUID             `json:"org_id"`
	ExternalAgentID       uuid.UUID             `json:"external_agent_id"`
	UserID                *uuid.UUID            `json:"user_id,omitempty"`
	RequestPayload        json.RawMessage       `json:"request_payload,omitempty"`
	RequestIP             string                `json:"request_ip"`
	RequestUserAgent      string                `json:"request_user_agent"`
	ResponsePayload       json.RawMessage       `json:"response_payload,omitempty"`
	ResponseStatusCode    *int                  `json:"response_status_code,omitempty"`
	ExecutionTimeMs       *int64                `json:"execution_time_ms,omitempty"`
	AuthPassed            bool                  `json:"auth_passed"`
	BudgetPassed          bool                  `json:"budget_passed"`
	RateLimitPassed       bool                  `json:"rate_limit_passed"`
	Status                InvocationStatus      `json:"status"`
	TraceID               string                `json:"trace_id"`
	WebhookDeliveryStatus WebhookDeliveryStatus `json:"webhook_delivery_status"`
	InvokedAt             time.Time             `json:"invoked_at"`
	CompletedAt           *time.Time            `json:"completed_at,omitempty"`
}

// InvocationLineage is the append-only 5-layer identity chain written once
// per terminal invocation (spec.md §3, §4.7).
type InvocationLineage struct {
	ID uuid.UUID `json:"id"` // == ExternalAgentInvocation.ID

	// Layer 1: external end-user identity.
	ExternalUserID    string `json:"external_user_id"`
	ExternalUserEmail string `json:"external_user_email"`
	ExternalUserName  string `json:"external_user_name,omitempty"`

	// Layer 2: external system/session context.
	ExternalSystem   string `json:"external_system"`
	ExternalSessionID string `json:"external_session_id"`

	// Layer 3: Kaizen Studio principal.
	APIKeyID *uuid.UUID `json:"api_key_id,omitempty"`
	OrgID    uuid.UUID  `json:"org_id"`
	TeamID   *uuid.UUID `json:"team_id,omitempty"`

	// Layer 4: target agent.
	ExternalAgentID uuid.UUID `json:"external_agent_id"`
	Endpoint        string    `json:"endpoint,omitempty"`

	// Layer 5: distributed trace coordinates.
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`

	RequestSnapshot  json.RawMessage `json:"request_snapshot,omitempty"`
	ResponseSnapshot json.RawMessage `json:"response_snapshot,omitempty"`

	CostUSD float64          `json:"cost_usd"`
	Tokens  int64            `json:"tokens"`
	Status  InvocationStatus `json:"status"`

	BudgetChecked     bool `json:"budget_checked"`
	BudgetExceeded    bool `json:"budget_exceeded"`
	ApprovalRequired  bool `json:"approval_required"`
	ApprovalGranted   bool `json:"approval_granted"`

	CreatedAt time.Time `json:"created_at"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalRequest gates an invocation that crossed a configured cost or
// policy trigger until an authorized approver decides it (spec.md §4.6).
// Once Status leaves pending the row is immutable.
type ApprovalRequest struct {
	ID           uuid.UUID      `json:"id"`
	OrgID        uuid.UUID      `json:"org_id"`
	InvocationID uuid.UUID      `json:"invocation_id"`
	RequestedBy  *uuid.UUID     `json:"requested_by,omitempty"`
	Reason       string         `json:"reason"`
	Status       ApprovalStatus `json:"status"`
	DecidedBy    *uuid.UUID     `json:"decided_by,omitempty"`
	DecisionNote string         `json:"decision_note,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at"`
	CreatedAt    time.Time      `json:"created_at"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
}

type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// AuditLog is append-only; a write failure must never fail the request that
// triggered it (internal/audit.Writer enforces this).
type AuditLog struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	IPAddress    string          `json:"ip_address"`
	UserAgent    string          `json:"user_agent"`
	Status       AuditStatus     `json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetWeekly  BudgetPeriod = "weekly"
	BudgetMonthly BudgetPeriod = "monthly"
)

type EnforcementMode string

const (
	EnforcementHard EnforcementMode = "hard"
	EnforcementSoft EnforcementMode = "soft"
)

// Budget configures per-agent spend/usage ceilings. A field value of -1
// means "unlimited" (spec.md §3, §4.5).
type Budget struct {
	ExternalAgentID          uuid.UUID       `json:"external_agent_id"`
	Period                   BudgetPeriod    `json:"period"`
	MaxCostPerPeriod         float64         `json:"max_cost_per_period"`
	MaxTokensPerPeriod       int64           `json:"max_tokens_per_period"`
	MaxInvocationsPerPeriod  int64           `json:"max_invocations_per_period"`
	Thresholds               []float64       `json:"thresholds,omitempty"`
	EnforcementMode          EnforcementMode `json:"enforcement_mode"`
	RolloverUnused           bool            `json:"rollover_unused"`
	CostPerInvocation        float64         `json:"cost_per_invocation"`
	CostPerToken             float64         `json:"cost_per_token"`
	Timezone                 string          `json:"timezone"`
}

// UsageRecord is an immutable per-invocation billing line item.
type UsageRecord struct {
	ID           uuid.UUID `json:"id"`
	OrgID        uuid.UUID `json:"org_id"`
	ResourceType string    `json:"resource_type"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	UnitCost     float64   `json:"unit_cost"`
	TotalCost    float64   `json:"total_cost"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Webhook is an outbound delivery subscription for an org. Platform selects
// which adapter (internal/webhook) formats the payload before delivery.
type Webhook struct {
	ID          uuid.UUID     `json:"id"`
	OrgID       uuid.UUID     `json:"org_id"`
	URL         string        `json:"url"`
	Secret      string        `json:"-"`
	Platform    AgentPlatform `json:"platform"`
	EventFilter []string      `json:"event_filter"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// WebhookDelivery records the final outcome of delivering one event to one
// webhook, after the dispatcher's retries. Deliveries are idempotent per
// (WebhookID, InvocationID, Event).
type WebhookDelivery struct {
	ID           uuid.UUID  `json:"id"`
	WebhookID    uuid.UUID  `json:"webhook_id"`
	InvocationID uuid.UUID  `json:"invocation_id"`
	Event        string     `json:"event"`
	StatusCode   *int       `json:"status_code,omitempty"`
	LatencyMs    *int64     `json:"latency_ms,omitempty"`
	Attempt      int        `json:"attempt"`
	Success      bool       `json:"success"`
	Error        *string    `json:"error,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
