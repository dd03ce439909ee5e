package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-kasir/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PORT":                    "",
		"REDIS_URL":               "",
		"MEMBERSHIP_RATE":         "",
		"MEMBERSHIP_MAX_DISCOUNT": "",
		"STORE_TIMEZONE":          "",
		"RATE_LIMIT_MAX":          "",
		"WEBHOOK_MAX_ATTEMPTS":    "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Empty(t, cfg.RedisURL)
	require.Equal(t, "0.3", cfg.MembershipRate.String())
	require.Equal(t, int64(8000), cfg.MembershipMaxAmount)
	require.Equal(t, "Asia/Seoul", cfg.Location.String())
	require.Equal(t, 120, cfg.RateLimitMax)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 3, cfg.WebhookMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PORT":                    ":9090",
		"MEMBERSHIP_RATE":         "0.25",
		"MEMBERSHIP_MAX_DISCOUNT": "5000",
		"STORE_TIMEZONE":          "UTC",
		"CORS_ALLOWED_ORIGINS":    "https://a.example, https://b.example",
		"RATE_LIMIT_WINDOW":       "30s",
		"OBS_ENABLE_PROMETHEUS":   "off",
		"IDEMPOTENCY_TTL":         "not-a-duration",
		"WEBHOOK_MAX_ATTEMPTS":    "5",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "0.25", cfg.MembershipRate.String())
	require.Equal(t, int64(5000), cfg.MembershipMaxAmount)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	require.False(t, cfg.MetricsEnabled)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL, "invalid durations fall back")
	require.Equal(t, time.UTC, cfg.Clock()().Location())
	require.Equal(t, 5, cfg.WebhookMaxAttempts)
}

func TestLoadRejectsInvalidMembership(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"MEMBERSHIP_RATE": "1.5"})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{"MEMBERSHIP_RATE": "abc"})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{"STORE_TIMEZONE": "Mars/Olympus"})
	require.Error(t, err)

	for _, v := range []string{"0", "-100"} {
		_, err = config.LoadForTests(map[string]string{"MEMBERSHIP_MAX_DISCOUNT": v})
		require.ErrorContains(t, err, "MEMBERSHIP_MAX_DISCOUNT", v)
	}
}

func TestLoadAcceptsZeroMembershipRate(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{"MEMBERSHIP_RATE": "0", "MEMBERSHIP_MAX_DISCOUNT": ""})
	require.NoError(t, err)
	require.True(t, cfg.MembershipRate.IsZero())
	require.Equal(t, int64(8000), cfg.MembershipMaxAmount)
}
