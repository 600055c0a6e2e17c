package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/enrollment-service/internal/api/http"
	"github.com/spec-kit/enrollment-service/internal/api/http/handlers"
	"github.com/spec-kit/enrollment-service/internal/auth"
	"github.com/spec-kit/enrollment-service/internal/config"
	"github.com/spec-kit/enrollment-service/internal/events"
	"github.com/spec-kit/enrollment-service/internal/extractor"
	"github.com/spec-kit/enrollment-service/internal/observability"
	"github.com/spec-kit/enrollment-service/internal/persistence"
	"github.com/spec-kit/enrollment-service/internal/repository"
	"github.com/spec-kit/enrollment-service/internal/service"
	"github.com/spec-kit/enrollment-service/internal/worker"
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

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var ticketRepo repository.TicketRepository
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
	}

	var sessionRepo repository.SessionRepository
	if redis.Client != nil {
		sessionRepo = repository.NewRedisSessionRepository(redis.Client, cfg.Session.TTL(), cfg.Session.LockTTL())
	} else {
		sessionRepo = repository.NewMemorySessionRepository()
	}

	fieldExtractor := buildExtractor(cfg.Extractor, logger)
	dispatcher := events.NewInMemoryDispatcher()

	enrollmentService := service.NewEnrollmentService(service.EnrollmentDependencies{
		SessionRepo:    sessionRepo,
		TicketRepo:     ticketRepo,
		Extractor:      fieldExtractor,
		Dispatcher:     dispatcher,
		Logger:         logger,
		ExtractTimeout: cfg.Extractor.Timeout(),
	})
	ingestService := service.NewIngestService(ticketRepo, dispatcher, logger, cfg.Ingest.MaxUploadBytes)
	summaryService := service.NewSummaryService(sessionRepo, logger)
	ticketQueryService := service.NewTicketQueryService(ticketRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)
	adminGuard := auth.NewAdminGuard(tokenManager, cfg.Admin.GuardEnabled())

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		// leave room for multipart framing around the enforced upload limit
		BodyLimit: int(cfg.Ingest.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Chat:       handlers.NewChatHandler(enrollmentService),
		Sessions:   handlers.NewSessionsHandler(enrollmentService, summaryService),
		Datadump:   handlers.NewDatadumpHandler(ingestService, ticketQueryService),
		Admin:      handlers.NewAdminHandler(tokenManager, cfg.Admin),
		AdminGuard: adminGuard,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildExtractor(cfg config.ExtractorConfig, logger *zap.Logger) extractor.Extractor {
	if cfg.Provider == "anthropic" && cfg.AnthropicAPIKey != "" {
		logger.Info("using anthropic field extractor", zap.String("model", cfg.AnthropicModel))
		return extractor.NewAnthropicExtractor(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	if cfg.Provider == "anthropic" {
		logger.Warn("ANTHROPIC_API_KEY not set; falling back to rule-based extractor")
	}
	return extractor.NewRuleExtractor()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
