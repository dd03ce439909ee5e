package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv               string
	Port                 string
	RedisURL             string
	CORSAllowedOrigins   []string
	ProductsFile         string
	PromotionsFile       string
	Location             *time.Location
	MembershipRate       decimal.Decimal
	MembershipMaxAmount  int64
	IdempotencyTTL       time.Duration
	RateLimitWindow      time.Duration
	RateLimitMax         int
	BodyLimitBytes       int64
	SettlementWebhookURL string
	WebhookTimeout       time.Duration
	WebhookMaxAttempts   int
	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	MetricsEnabled       bool
	MetricsBucketsMs     string
	TracingEnabled       bool
	TracingEndpoint      string
	TracingSampling      float64
	TracingExporter      string
	PprofEnabled         bool
	PprofUser            string
	PprofPass            string
	ShutdownTimeout      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	loc, err := time.LoadLocation(valueOrDefault(k.String("STORE_TIMEZONE"), "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("STORE_TIMEZONE: %w", err)
	}
	rate, err := decimal.NewFromString(valueOrDefault(k.String("MEMBERSHIP_RATE"), "0.30"))
	if err != nil {
		return nil, fmt.Errorf("MEMBERSHIP_RATE: %w", err)
	}

	cfg := &Config{
		AppEnv:               valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                 valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:             strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins:   splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ProductsFile:         valueOrDefault(k.String("STORE_PRODUCTS_FILE"), "resources/products.md"),
		PromotionsFile:       valueOrDefault(k.String("STORE_PROMOTIONS_FILE"), "resources/promotions.md"),
		Location:             loc,
		MembershipRate:       rate,
		MembershipMaxAmount:  parseInt64(k.String("MEMBERSHIP_MAX_DISCOUNT"), 8000),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitWindow:      parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:         int(parseInt64(k.String("RATE_LIMIT_MAX"), 120)),
		BodyLimitBytes:       parseInt64(k.String("BODY_LIMIT_BYTES"), 64<<10),
		SettlementWebhookURL: strings.TrimSpace(k.String("SETTLEMENT_WEBHOOK_URL")),
		WebhookTimeout:       parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
		WebhookMaxAttempts:   int(parseInt64(k.String("WEBHOOK_MAX_ATTEMPTS"), 3)),
		LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "kasir"),
		MetricsEnabled:       parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsBucketsMs:     strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
		TracingEnabled:       parseBool(k.String("OBS_ENABLE_TRACING"), false),
		TracingEndpoint:      strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:      parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		TracingExporter:      valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		PprofEnabled:         parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:            strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:            strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		ShutdownTimeout:      parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if cfg.MembershipRate.IsNegative() || cfg.MembershipRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.New("MEMBERSHIP_RATE must be between 0 and 1")
	}
	if cfg.MembershipMaxAmount <= 0 {
		return nil, errors.New("MEMBERSHIP_MAX_DISCOUNT must be positive")
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Clock returns the current time in the store's time zone.
func (c *Config) Clock() func() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
