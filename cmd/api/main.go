package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/gap-pos/internal/api/http"
	"github.com/spec-kit/gap-pos/internal/api/http/handlers"
	"github.com/spec-kit/gap-pos/internal/auth"
	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/events"
	"github.com/spec-kit/gap-pos/internal/observability"
	"github.com/spec-kit/gap-pos/internal/persistence"
	"github.com/spec-kit/gap-pos/internal/repository"
	"github.com/spec-kit/gap-pos/internal/service"
	"github.com/spec-kit/gap-pos/internal/storage"
	"github.com/spec-kit/gap-pos/internal/underwriting"
	"github.com/spec-kit/gap-pos/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger,
		zap.String("service", cfg.App.Name),
		zap.String("app_env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	var (
		flowRepo   repository.FlowRepository
		lockGuard  repository.LockGuard
		tokenStore auth.TokenStore
	)
	if rdb.Enabled() {
		flowRepo = repository.NewRedisFlowRepository(rdb.Client)
		lockGuard = repository.NewRedisLockGuard(rdb.Client)
		tokenStore = auth.NewRedisTokenStore(rdb.Client)
	} else {
		flowRepo = repository.NewMemoryFlowRepository()
		lockGuard = repository.NewMemoryLockGuard()
		tokenStore = auth.NewMemoryTokenStore()
	}

	var policyRepo repository.PolicyRepository
	if pg.Enabled() {
		policyRepo = repository.NewPolicyRepository(pg.Pool())
	}

	resolver, err := environment.NewResolver(cfg.Underwriting)
	if err != nil {
		logger.Fatal("invalid underwriting environment", zap.Error(err))
	}
	logger.Info("underwriting environment", zap.String("active", string(resolver.Active())))

	metrics := observability.NewMetrics()
	upstreamHTTP := &http.Client{Timeout: cfg.Underwriting.HTTPTimeout}
	identity := underwriting.NewIdentityClient(upstreamHTTP, metrics)
	sessions := auth.NewTokenProvider(identity, tokenStore, cfg.Underwriting.TokenValidity, logger)
	uwClient := underwriting.NewClient(upstreamHTTP, sessions, metrics, logger)

	portfolios := service.NewPortfolioCache(uwClient, logger)
	poller := service.NewDocumentPoller(uwClient, cfg.Documents.PollAttempts, cfg.Documents.PollDelay, logger)

	archive, err := storage.NewDocumentArchive(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init document archive", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	deps := service.PolicyDependencies{
		FlowRepo:          flowRepo,
		Guard:             lockGuard,
		PolicyRepo:        policyRepo,
		Resolver:          resolver,
		API:               uwClient,
		Portfolios:        portfolios,
		Poller:            poller,
		Dispatcher:        dispatcher,
		Logger:            logger,
		Session:           cfg.Session,
		SignatureValidity: cfg.Underwriting.SignatureValidity,
	}
	if archive != nil {
		deps.Archive = archive
	}
	policyService := service.NewPolicyService(deps)
	referenceService := service.NewReferenceService(uwClient, portfolios, resolver)
	adminService := service.NewAdminService(service.AdminDependencies{
		Resolver:   resolver,
		Portfolios: portfolios,
		PolicyRepo: policyRepo,
		Sessions:   sessions,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	runner := worker.NewRunner(8, 2*time.Minute, logger)
	worker.StartNotificationWorker(runner, notificationService)
	worker.StartDocumentWorker(runner, dispatcher, policyService, archive != nil, logger)

	tokens := auth.NewTokenManager(cfg.Auth.FlowTokenSecret, cfg.Auth.FlowTokenTTLMinutes)
	if cfg.Auth.OperatorPassHash == "" {
		logger.Warn("AUTH_OPERATOR_PASSWORD_HASH not provided; admin routes are locked")
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}),
		Flows:     handlers.NewFlowsHandler(policyService, tokens),
		Reference: handlers.NewReferenceHandler(referenceService),
		Admin:     handlers.NewAdminHandler(adminService, metrics),
		FlowAuth:  auth.NewFlowMiddleware(tokens),
		Operator:  auth.NewOperatorGate(cfg.Auth.OperatorUsername, cfg.Auth.OperatorPassHash),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background jobs did not finish", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
