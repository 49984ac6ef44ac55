package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Priya8975/webhook-notifier/internal/delivery"
)

// Config holds all configuration for the server.
type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`

	MigrationsDir string `mapstructure:"migrations_dir"`

	WebhookTimeout          time.Duration `mapstructure:"webhook_timeout"`
	WebhookUserAgent        string        `mapstructure:"webhook_user_agent"`
	WebhookMaxResponseChars int           `mapstructure:"webhook_max_response_chars"`

	TestRateLimitPerSecond int `mapstructure:"test_rate_limit_per_second"`
	NotifyConcurrency      int `mapstructure:"notify_concurrency"`
}

// Delivery returns the dispatcher settings.
func (c *Config) Delivery() delivery.Config {
	return delivery.Config{
		Timeout:          c.WebhookTimeout,
		UserAgent:        c.WebhookUserAgent,
		MaxResponseChars: c.WebhookMaxResponseChars,
	}
}

// Load reads configuration from environment variables. DATABASE_URL and
// REDIS_URL are optional; without them the server runs on in-memory
// collaborators.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("migrations_dir", "migrations")
	v.SetDefault("webhook_timeout", delivery.DefaultTimeout)
	v.SetDefault("webhook_user_agent", "")
	v.SetDefault("webhook_max_response_chars", delivery.DefaultMaxResponseChars)
	v.SetDefault("test_rate_limit_per_second", 1)
	v.SetDefault("notify_concurrency", 16)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.WebhookTimeout <= 0 {
		return nil, fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %s", cfg.WebhookTimeout)
	}
	if cfg.WebhookMaxResponseChars <= 0 {
		return nil, fmt.Errorf("WEBHOOK_MAX_RESPONSE_CHARS must be positive, got %d", cfg.WebhookMaxResponseChars)
	}
	if cfg.TestRateLimitPerSecond < 0 {
		return nil, fmt.Errorf("TEST_RATE_LIMIT_PER_SECOND must not be negative, got %d", cfg.TestRateLimitPerSecond)
	}
	if cfg.NotifyConcurrency <= 0 {
		return nil, fmt.Errorf("NOTIFY_CONCURRENCY must be positive, got %d", cfg.NotifyConcurrency)
	}

	return &cfg, nil
}
