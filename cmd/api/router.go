package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/common"
	"github.com/noah-isme/toko-kasir/internal/config"
	"github.com/noah-isme/toko-kasir/internal/health"
	"github.com/noah-isme/toko-kasir/internal/obs"
	"github.com/noah-isme/toko-kasir/internal/ratelimit"
	"github.com/noah-isme/toko-kasir/internal/security"
	"github.com/noah-isme/toko-kasir/internal/settlement"
)

type routerDeps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Engine  *settlement.Engine
	Redis   *redis.Client
	Metrics *obs.HTTPMetrics
	Tracing bool
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Total-Count", "Idempotent-Replayed", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	healthHandler := health.Handler{Probes: readinessProbes(d.Engine, d.Redis)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Lister: d.Engine})
	settleHandler := settlement.NewHandler(d.Engine)
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Handler{
		Limiter: newLimiter(d.Redis),
		Config: ratelimit.Config{
			Key:    ratelimit.KeyByClientIP("settle:"),
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Route("/products/{name}", func(p chi.Router) {
			p.Get("/top-up", settleHandler.TopUp)
			p.Get("/non-promotable", settleHandler.NonPromotable)
			p.Get("/free-count", settleHandler.FreeCount)
		})
		v.With(
			limiter.Middleware,
			security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware,
			idem.Middleware,
		).Post("/settlements", settleHandler.Settle)
	})

	return r
}

func newLimiter(rdb *redis.Client) ratelimit.Allower {
	if rdb == nil {
		return ratelimit.NewMemoryLimiter("kasir:rl:")
	}
	return ratelimit.Limiter{Client: rdb, Prefix: "kasir:rl:"}
}

func readinessProbes(engine *settlement.Engine, rdb *redis.Client) []health.Probe {
	probes := []health.Probe{{
		Name: "catalog",
		Check: func(context.Context) error {
			if engine == nil || len(engine.ListProducts()) == 0 {
				return errors.New("catalog empty")
			}
			return nil
		},
	}}
	if rdb != nil {
		probes = append(probes, health.Probe{
			Name:     "redis",
			Optional: true,
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return probes
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if strings.TrimSpace(user) == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
