package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/airquality/providers"
	httpapi "github.com/i474232898/air-quality-aggregation/internal/api/http"
	"github.com/i474232898/air-quality-aggregation/internal/config"
	"github.com/i474232898/air-quality-aggregation/internal/locations"
	"github.com/i474232898/air-quality-aggregation/internal/scheduler"
	"github.com/i474232898/air-quality-aggregation/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	registry, err := locations.Load(cfg.LocationsFile)
	if err != nil {
		logger.Fatal("failed to load locations", zap.Error(err))
	}

	// Shared HTTP client for outbound provider calls. Deadlines come from the
	// per-provider context.
	client := resty.New().SetHeader("Accept", "application/json")

	var transport providers.Transport = providers.NewDirectTransport(client)
	if len(cfg.CORSProxies) > 0 {
		logger.Info("routing provider calls through CORS proxies", zap.Strings("proxies", cfg.CORSProxies))
		transport = providers.NewProxiedTransport(client, cfg.CORSProxies)
	}

	// Providers in priority order, each with retries and a circuit breaker.
	provs := []airquality.Provider{
		providers.NewOpenWeatherProvider(transport, cfg.OpenWeatherAPIKey, providers.Calibration{
			PM25: cfg.PM25Calibration,
			PM10: cfg.PM10Calibration,
		}),
		providers.NewWAQIProvider(transport, cfg.WAQIAPIKey),
		providers.NewOpenMeteoProvider(transport),
		providers.NewOpenAQProvider(transport, cfg.OpenAQAPIKey),
	}

	service := airquality.NewService(provs,
		airquality.WithLogger(logger),
		airquality.WithProviderTimeout(cfg.ProviderTimeout),
		airquality.WithBatchConcurrency(cfg.BatchConcurrency),
	)
	logger.Info("providers configured", zap.Strings("order", service.Providers()))

	cache := newCache(cfg, logger)

	// Scheduler that periodically warms the cache.
	sched := scheduler.New(registry.Queries(), cfg.FetchInterval, cfg.QueryTimeout, service, cache, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, httpapi.Options{
		Cache:           cache,
		Locations:       registry,
		QueryTimeout:    cfg.QueryTimeout,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AccessLog:       true,
		Logger:          logger,
	})

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// newCache returns nil when caching is disabled. Redis is used when configured
// and reachable, the in-memory store otherwise.
func newCache(cfg *config.AppConfig, logger *zap.Logger) store.Cache {
	if cfg.CacheTTL == 0 {
		logger.Info("latest-record cache disabled")
		return nil
	}

	if cfg.RedisAddr != "" {
		rs := store.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.CacheTTL)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := rs.Ping(ctx)
		if err == nil {
			logger.Info("using redis cache", zap.String("addr", cfg.RedisAddr))
			return rs
		}
		logger.Warn("redis unavailable, falling back to memory cache", zap.Error(err))
		_ = rs.Close()
	}

	return store.NewMemoryStore(cfg.CacheTTL)
}
