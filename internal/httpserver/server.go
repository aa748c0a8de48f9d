package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/config"
	"github.com/integrum-global/kaizen-studio/internal/invocation"
	"github.com/integrum-global/kaizen-studio/internal/telemetry"
)

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // authenticated /api/v1 sub-router domain handlers mount onto
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Registry  *prometheus.Registry
	startedAt time.Time
}

// NewServer assembles the global middleware chain and the authenticated
// /api/v1 route group (spec.md §4: error boundary, authenticator, CSRF guard,
// lineage extractor — the rate limiter, audit tap, RBAC and ABAC gates run
// per-handler since their scopes and permission strings are route-specific).
// Domain handlers should be mounted on APIRouter after calling NewServer.
func NewServer(cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, registry *prometheus.Registry, metrics *telemetry.Metrics, authenticator *auth.Authenticator) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        pool,
		Redis:     rdb,
		Registry:  registry,
		startedAt: time.Now(),
	}

	// Global middleware. Recoverer is the error boundary (spec.md §4 stage 1):
	// it converts a panic anywhere downstream into a 500 instead of tearing
	// down the server.
	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics(metrics))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unauthenticated endpoints — exempt from the authenticator chain
	// (internal/auth.ExemptPaths mirrors this list).
	s.Router.Get("/", s.handleRoot)
	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.Router.Route("/api/v1", func(r chi.Router) {
		// 3. Authenticate: dev header → API key → JWT → anonymous.
		r.Use(authenticator.Middleware())

		// 2. CSRF guard — runs after the authenticator so Identity.Method is
		// already resolved and the API-key exemption can actually see it.
		r.Use(CSRFGuard(cfg.IsProduction(), cfg.CORSAllowedOrigins))

		// 4. Extract the external-agent caller's lineage identity from
		// X-External-* headers, ahead of any handler that needs it.
		r.Use(invocation.Middleware)

		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"service": "kaizen-studio"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports whether the process can serve traffic: both the
// database and the rate-limit/budget cache must be reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, r, notReady("database not ready"))
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, r, notReady("redis not ready"))
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

func notReady(message string) *apierr.Error {
	err := apierr.Internal(message)
	err.Status = http.StatusServiceUnavailable
	return err
}
