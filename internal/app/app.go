// Package app wires every governance component into the two process roles
// cmd/kaizen can run as: the HTTP API and the approval-expiry worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/integrum-global/kaizen-studio/internal/approval"
	"github.com/integrum-global/kaizen-studio/internal/audit"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/budget"
	"github.com/integrum-global/kaizen-studio/internal/config"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/handler/agenthandler"
	"github.com/integrum-global/kaizen-studio/internal/handler/apikeyhandler"
	"github.com/integrum-global/kaizen-studio/internal/handler/approvalhandler"
	"github.com/integrum-global/kaizen-studio/internal/handler/audithandler"
	"github.com/integrum-global/kaizen-studio/internal/handler/authhandler"
	"github.com/integrum-global/kaizen-studio/internal/handler/invitationhandler"
	"github.com/integrum-global/kaizen-studio/internal/httpserver"
	"github.com/integrum-global/kaizen-studio/internal/invocation"
	"github.com/integrum-global/kaizen-studio/internal/keystore"
	"github.com/integrum-global/kaizen-studio/internal/lineage"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/platform"
	"github.com/integrum-global/kaizen-studio/internal/ratelimit"
	"github.com/integrum-global/kaizen-studio/internal/telemetry"
	"github.com/integrum-global/kaizen-studio/internal/webhook"
	"github.com/integrum-global/kaizen-studio/pkg/discord"
	"github.com/integrum-global/kaizen-studio/pkg/notion"
	"github.com/integrum-global/kaizen-studio/pkg/slack"
	"github.com/integrum-global/kaizen-studio/pkg/teams"
	"github.com/integrum-global/kaizen-studio/pkg/telegram"
)

// serviceVersion labels every trace and log line emitted by this process.
// There is no release pipeline wired up yet to stamp this from a build tag.
const serviceVersion = "dev"

// Run connects to infrastructure with the already-loaded cfg and starts the
// process role named by cfg.Mode ("api" or "worker").
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting kaizen-studio", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	_, shutdownTracer, err := telemetry.InitTracer(ctx, "kaizen-studio", serviceVersion)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	registry, metrics := telemetry.NewMetricsRegistry()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, pool, rdb, registry, metrics)
	case "worker":
		return runWorker(ctx, cfg, logger, pool)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, registry *prometheus.Registry, metrics *telemetry.Metrics) error {
	queries := db.New(pool)

	jwtKeys, err := keystore.LoadJWTKeys(cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		return fmt.Errorf("loading JWT keys: %w", err)
	}
	issuer := auth.NewTokenIssuer(jwtKeys, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	authenticator := auth.NewAuthenticator(queries, pool, issuer, cfg.IsProduction(), logger)
	apiKeys := &auth.APIKeyAuthenticator{DB: pool}

	var cipher *keystore.Cipher
	if cfg.CredentialEncryptionKey != "" {
		cipher, err = keystore.NewCipher(cfg.CredentialEncryptionKey)
		if err != nil {
			return fmt.Errorf("constructing credential cipher: %w", err)
		}
	}

	auditWriter := audit.NewWriter(queries, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	rateBase := ratelimit.New(rdb)
	tiered := ratelimit.NewTiered(rateBase)
	budgetEnforcer := budget.NewEnforcer(queries, rdb)
	approvals := approval.NewManager(queries)
	dispatcher := invocation.NewDispatcher(cipher)
	lineageWriter := lineage.NewWriter(queries)
	webhookDispatcher := webhook.NewDispatcher(queries, logger, webhookAdapters(cfg))

	pipeline := invocation.NewPipeline(queries, tiered, budgetEnforcer, approvals, dispatcher, lineageWriter, webhookDispatcher)

	srv := httpserver.NewServer(cfg, logger, pool, rdb, registry, metrics, authenticator)

	srv.APIRouter.Mount("/auth", authhandler.New(queries, issuer, auditWriter).Routes())
	srv.APIRouter.Mount("/invitations", invitationhandler.New(queries, auditWriter).Routes())
	srv.APIRouter.Mount("/api-keys", apikeyhandler.New(queries, apiKeys, auditWriter).Routes())
	srv.APIRouter.Mount("/external-agents", agenthandler.New(queries, pipeline, auditWriter, metrics).Routes())
	srv.APIRouter.Mount("/audit", audithandler.New(queries).Routes())
	srv.APIRouter.Mount("/approvals", approvalhandler.New(approvals, auditWriter).Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker hosts the approval-expiry sweep (spec.md §4.6): pending requests
// past their TTL are expired on a timer independent of any inbound request.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) error {
	logger.Info("worker started", "sweep_interval", cfg.ApprovalSweepInterval)

	queries := db.New(pool)
	sweeper := approval.NewSweeper(queries, cfg.ApprovalSweepInterval, func(_ context.Context, req *model.ApprovalRequest) {
		logger.Info("approval request expired", "approval_id", req.ID, "org_id", req.OrgID)
	})
	return sweeper.Run(ctx)
}

// webhookAdapters builds the platform adapter map. Slack, Discord and Teams
// are always registered; Telegram and Notion are registered only when their
// token is configured. Dispatcher.Enqueue skips webhooks it has no
// adapter for rather than failing the invocation that triggered them.
func webhookAdapters(cfg *config.Config) map[model.AgentPlatform]webhook.Adapter {
	adapters := make(map[model.AgentPlatform]webhook.Adapter)

	adapters[model.PlatformSlack] = slack.New()
	adapters[model.PlatformDiscord] = discord.New()
	adapters[model.PlatformTeams] = teams.New()

	if cfg.TelegramBotToken != "" {
		adapters[model.PlatformTelegram] = telegram.New()
	}
	if cfg.NotionIntegrationToken != "" {
		adapters[model.PlatformNotion] = notion.New(cfg.NotionDatabaseID)
	}

	return adapters
}
