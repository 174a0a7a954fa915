package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// APIConfig holds scheduling API connection details
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RetryConfig bounds rate limit retries of a single request
type RetryConfig struct {
	MaxRetryTime  time.Duration `mapstructure:"max_retry_time"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
}

// RateLimitConfig controls client-side request pacing
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig enables the response cache and shared rate limit tracking
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// PaginationConfig contains listing settings
type PaginationConfig struct {
	MaxPages    int           `mapstructure:"max_pages"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
