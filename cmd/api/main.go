package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/assist-service/internal/api/http"
	"github.com/spec-kit/assist-service/internal/api/http/handlers"
	"github.com/spec-kit/assist-service/internal/auth"
	"github.com/spec-kit/assist-service/internal/config"
	"github.com/spec-kit/assist-service/internal/events"
	"github.com/spec-kit/assist-service/internal/observability"
	"github.com/spec-kit/assist-service/internal/persistence"
	"github.com/spec-kit/assist-service/internal/repository"
	"github.com/spec-kit/assist-service/internal/scheduler"
	"github.com/spec-kit/assist-service/internal/service"
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

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	authService := service.NewAuthService(*cfg, userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	requestService := service.NewRequestService(service.RequestDependencies{
		RequestRepo:      requestRepo,
		CommentRepo:      commentRepo,
		Dispatcher:       dispatcher,
		FollowUpInterval: cfg.FollowUp.Interval(),
	})
	historyService := service.NewHistoryService(service.HistoryDependencies{
		RequestRepo:      requestRepo,
		VisibilityWindow: cfg.FollowUp.VisibilityWindow(),
	})

	scanner := scheduler.NewFollowUpScanner(scheduler.ScannerDependencies{
		RequestRepo:       requestRepo,
		Sink:              notificationService,
		Locker:            scheduler.NewRedisLocker(redis.Client, cfg.FollowUp.LockKey, cfg.FollowUp.LockTTL()),
		Logger:            logger,
		Metrics:           metrics,
		FollowUpInterval:  cfg.FollowUp.Interval(),
		RenotifyEveryScan: cfg.FollowUp.RenotifyEveryScan,
	})
	go scanner.Run(ctx, cfg.FollowUp.ScanInterval())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Requests:       handlers.NewRequestsHandler(requestService),
		History:        handlers.NewHistoryHandler(historyService),
		FollowUps:      handlers.NewFollowUpsHandler(scanner),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
