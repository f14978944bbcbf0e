package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"txdash/internal/amqp"
	"txdash/internal/backend"
	"txdash/internal/cache"
	"txdash/internal/cli"
	"txdash/internal/core"
	apphttp "txdash/internal/http"
	applog "txdash/internal/log"
	"txdash/internal/metrics"
	"txdash/internal/middleware/cors"
	"txdash/internal/notify"
	"txdash/internal/seed"
	"txdash/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.Logger).CreateBackend(startCtx, backendCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldBackend, cfg.DataBackend, applog.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()

	responses := cache.NewLRUCache[any](cfg.CacheSize, cfg.CacheTTL)
	caches := cache.NewManager(logger.Logger)
	caches.Register(responses)
	caches.StartCleanup(cfg.CacheTTL)
	m.RegisterCacheStats(responses.Stats)

	hub := notify.NewHub(logger.Logger.With(applog.FieldComponent, applog.ComponentNotify), cors.OriginChecker(cfg.CORSAllowedOrigin))

	notifiers := notify.Multi{
		m,
		hub,
		notify.NotifierFunc(func(_ context.Context, status core.DatasetStatus) error {
			if status.State == core.StateReady {
				caches.PurgeAll()
			}
			return nil
		}),
	}

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			// status events are best effort; the API works without them
			logger.WithComponent(applog.ComponentAMQP).Warn("AMQP unavailable, dataset status events disabled",
				applog.FieldError, err)
		} else {
			notifiers = append(notifiers, broker)
		}
	}

	seeder := seed.New(result.Store, seed.NewSource(cfg.SeedFile, cfg.SeedURL), seed.Options{
		Timeout:    cfg.SeedTimeout,
		MaxRetries: cfg.SeedMaxRetries,
		Notifier:   notifiers,
		Logger:     logger,
	})

	analytics := services.NewAnalyticsService(result.Store, services.AnalyticsOptions{
		QueryTimeout: cfg.QueryTimeout,
		MaxPerPage:   cfg.MaxPerPage,
		Cache:        responses,
		Ready:        seeder.Ready,
		Failures:     m,
		Logger:       logger,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Analytics:         analytics,
		Status:            seeder,
		GateUntilReady:    cfg.SeedGateRequests,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimitRPM:      cfg.RateLimitRPM,
		Metrics:           m.Handler(),
		Observer:          m,
		StatusStream:      hub,
		Logger:            logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.QueryTimeout + 5*time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		hub.Stop()
		caches.Stop()
		if broker != nil {
			if err := broker.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	go hub.Start(ctx)

	// the server answers while the seed is in flight; readiness is reported
	// through /readyz and the dataset status header
	go func() {
		if err := seeder.Run(ctx); err != nil {
			logger.Warn("Serving without seeded data", applog.FieldError, err)
		}
	}()

	logger.Info("Starting txdash server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		applog.FieldSource, seed.NewSource(cfg.SeedFile, cfg.SeedURL).String(),
		"log_level", cli.Level(ctx).String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
