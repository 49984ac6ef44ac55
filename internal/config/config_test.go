package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 4096, cfg.WebhookMaxResponseChars)
	assert.Equal(t, 1, cfg.TestRateLimitPerSecond)
	assert.Equal(t, 16, cfg.NotifyConcurrency)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/webhooks")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WEBHOOK_TIMEOUT", "2500ms")
	t.Setenv("WEBHOOK_USER_AGENT", "acme-hooks/2.0")
	t.Setenv("WEBHOOK_MAX_RESPONSE_CHARS", "1024")
	t.Setenv("TEST_RATE_LIMIT_PER_SECOND", "0")
	t.Setenv("NOTIFY_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://localhost/webhooks", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.WebhookTimeout)
	assert.Equal(t, 0, cfg.TestRateLimitPerSecond)
	assert.Equal(t, 4, cfg.NotifyConcurrency)

	d := cfg.Delivery()
	assert.Equal(t, 2500*time.Millisecond, d.Timeout)
	assert.Equal(t, "acme-hooks/2.0", d.UserAgent)
	assert.Equal(t, 1024, d.MaxResponseChars)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"WEBHOOK_TIMEOUT":            "-1s",
		"WEBHOOK_MAX_RESPONSE_CHARS": "0",
		"TEST_RATE_LIMIT_PER_SECOND": "-3",
		"NOTIFY_CONCURRENCY":         "0",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
