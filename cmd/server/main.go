package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/webhook-notifier/internal/api"
	"github.com/Priya8975/webhook-notifier/internal/config"
	"github.com/Priya8975/webhook-notifier/internal/delivery"
	"github.com/Priya8975/webhook-notifier/internal/gateway"
	"github.com/Priya8975/webhook-notifier/internal/health"
	"github.com/Priya8975/webhook-notifier/internal/notify"
	"github.com/Priya8975/webhook-notifier/internal/ratelimit"
	"github.com/Priya8975/webhook-notifier/internal/store"
	ws "github.com/Priya8975/webhook-notifier/internal/websocket"
)

// registrationStore is what the server needs from persistence.
type registrationStore interface {
	gateway.RegistrationLookup
	gateway.ActivityRecorder
	notify.SubscriptionFinder
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.Pinger{}

	var registrations registrationStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		logger.Info("connected to PostgreSQL")

		if err := pgStore.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
			return err
		}
		logger.Info("database migrations applied", "dir", cfg.MigrationsDir)

		registrations = pgStore
		checks["postgres"] = pgStore
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory registrations")
		registrations = store.NewMemoryStore()
	}

	var (
		limiter ratelimit.Limiter
		checker health.Checker = health.Noop{}
	)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		limiter = ratelimit.NewRedisLimiter(redisStore.Client(), logger)
		checker = health.NewTracker(redisStore.Client(), logger)
		checks["redis"] = redisStore
	} else {
		logger.Warn("REDIS_URL not set, using local rate limiting and no health tracking")
		local, err := ratelimit.NewLocalLimiter(ratelimit.DefaultLocalKeys)
		if err != nil {
			return err
		}
		limiter = local
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	dispatcher := delivery.NewDispatcher(cfg.Delivery(), logger)

	gw := &gateway.Gateway{
		Registrations: registrations,
		Activity:      registrations,
		Dispatcher:    dispatcher,
		Limiter:       limiter,
		Health:        checker,
		Hub:           hub,
		TestRateLimit: cfg.TestRateLimitPerSecond,
		Logger:        logger,
	}
	notifier := notify.NewNotifier(registrations, dispatcher, checker, hub, cfg.NotifyConcurrency, logger)

	router := api.NewRouter(api.Deps{
		Sender:        gw,
		Publisher:     notifier,
		Registrations: registrations,
		Health:        checker,
		Hub:           http.HandlerFunc(hub.HandleWebSocket),
		Checks:        checks,
		Logger:        logger,
	})

	// Test sends are synchronous, so writes must outlast the webhook timeout.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WebhookTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
