package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-bridge/internal/analytics"
	httptransport "github.com/spec-kit/handoff-bridge/internal/api/http"
	"github.com/spec-kit/handoff-bridge/internal/api/http/handlers"
	"github.com/spec-kit/handoff-bridge/internal/authguard"
	"github.com/spec-kit/handoff-bridge/internal/clock"
	"github.com/spec-kit/handoff-bridge/internal/config"
	"github.com/spec-kit/handoff-bridge/internal/dedup"
	"github.com/spec-kit/handoff-bridge/internal/events"
	"github.com/spec-kit/handoff-bridge/internal/helpdesk"
	"github.com/spec-kit/handoff-bridge/internal/observability"
	"github.com/spec-kit/handoff-bridge/internal/persistence"
	"github.com/spec-kit/handoff-bridge/internal/ratelimit"
	"github.com/spec-kit/handoff-bridge/internal/repository"
	"github.com/spec-kit/handoff-bridge/internal/service"
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

	clk := clock.System()
	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect reporting replica", zap.Error(err))
	}
	defer pg.Close()

	useRedis := cfg.Dedup.UseRedis || cfg.Idempotency.UseRedis || cfg.RateLimit.UseRedis
	var rdb *persistence.Redis
	if useRedis {
		rdb = persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
	}

	var idemStore dedup.IdempotencyStore
	if cfg.Idempotency.UseRedis {
		idemStore = dedup.NewRedisIdempotencyStore(rdb.Client, cfg.Idempotency.TTL(), clk)
	} else {
		idemStore = dedup.NewMemoryIdempotencyStore(dedup.MemoryOptions{
			TTL:           cfg.Idempotency.TTL(),
			SweepInterval: cfg.Idempotency.SweepInterval(),
			Clock:         clk,
		})
	}
	defer idemStore.Close()

	var ticketStore dedup.TicketStore
	if cfg.Dedup.UseRedis {
		ticketStore = dedup.NewRedisTicketStore(rdb.Client, cfg.Dedup.Window(), clk)
	} else {
		ticketStore = dedup.NewMemoryTicketStore(dedup.MemoryOptions{
			TTL:           cfg.Dedup.Window(),
			SweepInterval: cfg.Dedup.SweepInterval(),
			Clock:         clk,
		})
	}
	defer ticketStore.Close()

	var limiter ratelimit.Limiter
	limiterOpts := ratelimit.Options{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window(),
		Clock:  clk,
	}
	if cfg.RateLimit.UseRedis {
		limiter = ratelimit.NewRedisLimiter(rdb.Client, limiterOpts)
	} else {
		limiter = ratelimit.NewMemoryLimiter(limiterOpts)
	}

	guard := authguard.NewGuard(authguard.Options{
		SharedToken:     cfg.Auth.SharedToken,
		SharedTokenHash: cfg.Auth.SharedTokenHash,
		SigningSecret:   cfg.Auth.SigningSecret,
		SkewWindow:      cfg.Auth.SkewWindow(),
		Clock:           clk,
	})
	defer guard.Close()

	helpdeskClient := helpdesk.NewHTTPClient(cfg.Helpdesk.BaseURL, cfg.Helpdesk.APIKey, cfg.Helpdesk.Timeout())

	// Analytics reads from the reporting replica when configured, otherwise
	// through the helpdesk API.
	var recordSource service.RecordSource = helpdeskClient
	if pool := pg.PoolHandle(); pool != nil {
		recordSource = repository.NewReportingRepository(pool)
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	handoffService := service.NewHandoffService(service.HandoffDependencies{
		TicketStore: ticketStore,
		Helpdesk:    helpdeskClient,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Clock:       clk,
	})
	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{
		Source: recordSource,
		Logger: logger,
		Weights: analytics.HealthWeights{
			Volume:     cfg.Health.VolumeWeight,
			Escalation: cfg.Health.EscalationWeight,
			Resolution: cfg.Health.ResolutionWeight,
		},
		EscalationOpts: analytics.EscalationOptions{RepeatThreshold: cfg.Analytics.RepeatThreshold},
		PatternOpts:    analytics.PatternOptions{PerStaffThroughput: cfg.Analytics.PerStaffThroughput},
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Handoff:     handlers.NewHandoffHandler(handoffService),
		Analytics:   handlers.NewAnalyticsHandler(analyticsService),
		Auth:        httptransport.AuthMiddleware(guard),
		RateLimit:   httptransport.RateLimitMiddleware(limiter),
		Idempotency: httptransport.IdempotencyMiddleware(idemStore, metrics),
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
