package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the process-wide collection of Prometheus instruments exercised
// by the HTTP pipeline, the invocation orchestrator, and the background
// workers. All instruments live in a private registry returned alongside
// this struct by NewMetricsRegistry, so tests can construct isolated
// instances instead of sharing prometheus.DefaultRegisterer.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	AuthAttemptsTotal      *prometheus.CounterVec
	ExecutionsTotal        *prometheus.CounterVec
	ExecutionDuration      *prometheus.HistogramVec
	DatabaseQueryDuration  *prometheus.HistogramVec
	DeploymentsTotal       *prometheus.CounterVec
	RateLimitRejectedTotal *prometheus.CounterVec
	ApprovalsTotal         *prometheus.CounterVec
	WebhookDeliveryTotal   *prometheus.CounterVec
	ActiveDeployments      prometheus.Gauge
	ActiveGateways         prometheus.Gauge
	ActiveUsers            prometheus.Gauge
	PendingInvitations     prometheus.Gauge
}

// NewMetricsRegistry builds a fresh prometheus.Registry with every Kaizen
// Studio collector registered and returns both.
func NewMetricsRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_api_requests_total",
			Help: "Total HTTP requests handled, labeled by method, route, and status.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kaizen_request_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		AuthAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_auth_attempts_total",
			Help: "Authentication attempts, labeled by method and outcome.",
		}, []string{"method", "outcome"}),

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_executions_total",
			Help: "External agent invocations, labeled by org, agent, and outcome.",
		}, []string{"org_id", "agent_id", "outcome"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kaizen_execution_latency_seconds",
			Help:    "Upstream agent dispatch latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"agent_id"}),

		DatabaseQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kaizen_database_query_latency_seconds",
			Help:    "Postgres query latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),

		DeploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_deployments_total",
			Help: "Deployment lifecycle transitions, labeled by environment and status.",
		}, []string{"environment", "status"}),

		RateLimitRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_rate_limit_rejected_total",
			Help: "Requests rejected by the fixed-window rate limiter, labeled by scope.",
		}, []string{"scope"}),

		ApprovalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_approvals_total",
			Help: "Approval decisions, labeled by outcome.",
		}, []string{"outcome"}),

		WebhookDeliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaizen_webhook_deliveries_total",
			Help: "Webhook delivery attempts, labeled by platform and outcome.",
		}, []string{"platform", "outcome"}),

		ActiveDeployments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kaizen_active_deployments",
			Help: "Current number of active deployments.",
		}),

		ActiveGateways: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kaizen_active_gateways",
			Help: "Current number of active gateways.",
		}),

		ActiveUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kaizen_active_users",
			Help: "Current number of active users across all organizations.",
		}),

		PendingInvitations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kaizen_pending_invitations",
			Help: "Current number of pending organization invitations.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.DatabaseQueryDuration,
		m.DeploymentsTotal,
		m.RateLimitRejectedTotal,
		m.ApprovalsTotal,
		m.WebhookDeliveryTotal,
		m.ActiveDeployments,
		m.ActiveGateways,
		m.ActiveUsers,
		m.PendingInvitations,
	)

	return reg, m
}
