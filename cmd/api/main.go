package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/config"
	"github.com/noah-isme/toko-kasir/internal/events"
	"github.com/noah-isme/toko-kasir/internal/health"
	"github.com/noah-isme/toko-kasir/internal/obs"
	"github.com/noah-isme/toko-kasir/internal/pricing"
	"github.com/noah-isme/toko-kasir/internal/resilience"
	"github.com/noah-isme/toko-kasir/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-kasir",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if cfg.MetricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("ping redis, idempotency and shared rate limits degraded")
		}
		cancel()
	} else {
		logger.Info().Msg("redis not configured, using in-memory rate limits without idempotency replay")
	}

	store, err := catalog.LoadFiles(cfg.ProductsFile, cfg.PromotionsFile, cfg.Clock())
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}
	if err := store.Verify(); err != nil {
		logger.Warn().Err(err).Msg("catalog references unknown promotions")
	}

	notifiers := []events.Notifier{events.LogNotifier{Logger: logger}}
	if cfg.SettlementWebhookURL != "" {
		notifiers = append(notifiers, events.WebhookNotifier{
			URL: cfg.SettlementWebhookURL,
			Client: resilience.HTTPClient{
				Client:      events.HTTPClient(cfg.WebhookTimeout),
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("settlement_webhook").WithLogger(logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: cfg.WebhookMaxAttempts,
				Jitter:      0.2,
				Timeout:     cfg.WebhookTimeout,
			},
		})
	}

	engine, err := settlement.NewEngine(settlement.Config{
		Catalog: store,
		Pricing: &pricing.Calculator{MembershipRate: cfg.MembershipRate, MembershipCap: cfg.MembershipMaxAmount},
		Events:  &events.Bus{Notifiers: notifiers},
		Logger:  logger,
		Now:     cfg.Clock(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise settlement engine")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMs), nil)
	}

	handler := newRouter(routerDeps{
		Config:  cfg,
		Logger:  logger,
		Engine:  engine,
		Redis:   redisClient,
		Metrics: httpMetrics,
		Tracing: tracingEnabled,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}
