package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/kpi-service/internal/api/http"
	"github.com/spec-kit/kpi-service/internal/api/http/handlers"
	"github.com/spec-kit/kpi-service/internal/auth"
	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/events"
	"github.com/spec-kit/kpi-service/internal/observability"
	"github.com/spec-kit/kpi-service/internal/persistence"
	"github.com/spec-kit/kpi-service/internal/repository"
	"github.com/spec-kit/kpi-service/internal/scheduler"
	"github.com/spec-kit/kpi-service/internal/service"
	"github.com/spec-kit/kpi-service/internal/worker"
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
	kpiRepo := repository.NewKPIRepository(pool)
	historyRepo := repository.NewKPIHistoryRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	kpiService := service.NewKPIService(cfg.KPI, service.KPIDependencies{
		KPIRepo:     kpiRepo,
		HistoryRepo: historyRepo,
		UserRepo:    userRepo,
		Dispatcher:  dispatcher,
	})
	notificationService := service.NewNotificationService(cfg.KPI, service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		KPIRepo:          kpiRepo,
		Dispatcher:       dispatcher,
	}, logger)
	authService := service.NewAuthService(cfg.Auth, userRepo)
	userService := service.NewUserService(cfg.Auth, userRepo)

	worker.StartNotificationWorker(notificationService)

	if cfg.Scheduler.Enabled {
		sweeper := scheduler.New(cfg.Scheduler, notificationService, redis, logger)
		go sweeper.Run(ctx)
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, userService),
		Kpis:           handlers.NewKpisHandler(kpiService),
		Dashboard:      handlers.NewDashboardHandler(kpiService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
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
