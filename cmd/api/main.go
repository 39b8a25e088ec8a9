package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
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

	calendar, err := config.BuildCalendar(cfg.SLA)
	if err != nil {
		logger.Fatal("invalid business calendar", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	policyRepo := repository.NewSLAPolicyRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	engine := sla.NewEngine(sla.Dependencies{
		Tickets:  ticketRepo,
		Policies: policyRepo,
		Calendar: calendar,
		Logger:   logger.Named("sla"),
	})

	if cfg.SLA.SeedDefaultPolicies {
		if _, err := engine.SeedPolicies(ctx, sla.DefaultPolicies()); err != nil {
			logger.Fatal("failed to seed sla policies", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()

	var seen notify.SeenStore
	if redis.Reachable {
		seen = notify.NewRedisSeenStore(redis.Client)
	} else {
		logger.Warn("feed state kept in memory")
		seen = notify.NewMemorySeenStore(time.Now)
	}

	feed := notify.NewFeed(notify.FeedDependencies{
		Scanner:          engine,
		Seen:             seen,
		Logger:           logger.Named("feed"),
		Metrics:          metrics,
		Cooldown:         cfg.SLA.FeedCooldown(),
		SeenTTL:          cfg.SLA.FeedSeenTTL(),
		WarningThreshold: cfg.SLA.WarningThresholdPercent,
	})

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Logger:     logger.Named("notify"),
		Mailer:     service.NewSMTPMailer(cfg.Notification),
		Webhook:    service.NewFiberWebhook(cfg.Notification),
	})
	monitor := worker.NewSLAMonitor(feed, dispatcher, logger.Named("monitor"), cfg.SLA.MonitorInterval())
	worker.StartNotificationWorker(ctx, notificationService, monitor)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, staffRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			map[string]handlers.Pinger{"postgres": pg},
			map[string]handlers.Pinger{"redis": redis}),
		SLA:            handlers.NewSLAHandler(engine, feed, cfg.SLA.WarningThresholdPercent),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
