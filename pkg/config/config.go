// Package config loads scheduling client settings from a YAML file and
// SCHEDULE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/schedule-client/pkg/client"
	"github.com/Sternrassler/schedule-client/pkg/logging"
	"github.com/Sternrassler/schedule-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SCHEDULE_API_API_KEY.
const EnvPrefix = "SCHEDULE"

// Load loads the configuration. An explicit configPath must exist; without
// one, config.yaml is looked up in the usual locations and may be absent, in
// which case defaults and environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".schedule-client"))
		}

		v.AddConfigPath("/etc/schedule-client/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key is registered so
// that environment variables can override it.
func setDefaults(v *viper.Viper) {
	defaults := client.DefaultConfig("", "")

	// API defaults
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.user_agent", defaults.UserAgent)
	v.SetDefault("api.timeout", defaults.Timeout)

	// Retry defaults
	v.SetDefault("retry.max_retry_time", defaults.MaxRetryTime)
	v.SetDefault("retry.max_retry_delay", defaults.MaxRetryDelay)

	// Pacing is off unless configured
	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst", 1)

	// Redis is optional
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", time.Duration(0))

	v.SetDefault("pagination.max_pages", 0)
	v.SetDefault("pagination.page_timeout", time.Duration(0))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.color", false)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}

	if cfg.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required")
	}

	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if cfg.Retry.MaxRetryTime <= 0 {
		return fmt.Errorf("retry.max_retry_time must be positive")
	}

	if cfg.Retry.MaxRetryDelay <= 0 {
		return fmt.Errorf("retry.max_retry_delay must be positive")
	}

	if cfg.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}

	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst must not be negative")
	}

	if cfg.Redis.CacheTTL < 0 {
		return fmt.Errorf("redis.cache_ttl must not be negative")
	}

	if cfg.Redis.CacheTTL > 0 && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.cache_ttl requires redis.addr")
	}

	if cfg.Pagination.MaxPages < 0 {
		return fmt.Errorf("pagination.max_pages must not be negative")
	}

	if !logging.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// NewRedisClient returns a Redis client for the configured address, or nil
// when Redis is not configured.
func (c *Config) NewRedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// ClientConfig converts the settings to a client.Config. redisClient and
// logger may be nil.
func (c *Config) ClientConfig(redisClient *redis.Client, logger *zerolog.Logger) client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL, c.API.APIKey)
	cfg.UserAgent = c.API.UserAgent
	cfg.Timeout = c.API.Timeout
	cfg.MaxRetryTime = c.Retry.MaxRetryTime
	cfg.MaxRetryDelay = c.Retry.MaxRetryDelay
	cfg.RequestsPerSecond = c.RateLimit.RequestsPerSecond
	cfg.Burst = c.RateLimit.Burst
	cfg.Redis = redisClient
	cfg.CacheTTL = c.Redis.CacheTTL
	cfg.Logger = logger
	return cfg
}

// LoggingConfig converts the logging section to a logging.Config.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Logging.Level))
	cfg.Pretty = c.Logging.Format == "console"
	cfg.Color = c.Logging.Color
	return cfg
}

// PaginationConfig converts the pagination section to a pagination.Config.
func (c *Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		MaxPages: c.Pagination.MaxPages,
		Timeout:  c.Pagination.PageTimeout,
	}
}
