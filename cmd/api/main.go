package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-support/internal/api/http"
	"github.com/spec-kit/crm-support/internal/api/http/handlers"
	"github.com/spec-kit/crm-support/internal/auth"
	"github.com/spec-kit/crm-support/internal/config"
	"github.com/spec-kit/crm-support/internal/observability"
	"github.com/spec-kit/crm-support/internal/persistence"
	"github.com/spec-kit/crm-support/internal/repository"
	"github.com/spec-kit/crm-support/internal/service"
	"github.com/spec-kit/crm-support/internal/sla"
	"github.com/spec-kit/crm-support/internal/worker"

	"github.com/spec-kit/crm-support/internal/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo  repository.TicketRepository
		messageRepo repository.MessageRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		messageRepo = repository.NewMessageRepository(pool)
	} else {
		store := repository.NewMemoryStore()
		ticketRepo = store
		messageRepo = store
	}

	policy := sla.Policy{
		FirstResponseMax: cfg.Sla.FirstResponseMax(),
		ResolutionMax:    cfg.Sla.ResolutionMax(),
	}
	dispatcher := events.NewInMemoryDispatcher()

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Policy:      policy,
		Dispatcher:  dispatcher,
	})
	queryService := service.NewQueryService(service.QueryDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Cache:       redis.Client,
		CacheTTL:    cfg.Analytics.CacheTTL(),
		Logger:      logger,
	})

	slaWorker := worker.NewSlaWorker(worker.SlaWorkerDependencies{
		TicketRepo: ticketRepo,
		Policy:     policy,
		Interval:   cfg.Sla.SweepInterval(),
		BatchSize:  cfg.Sla.SweepBatchSize,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	go slaWorker.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, cfg.Auth.APIKeyHashes)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Tickets:        handlers.NewTicketsHandler(lifecycleService, queryService),
		Dashboard:      handlers.NewDashboardHandler(queryService, cfg.Analytics.TopAgents),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
