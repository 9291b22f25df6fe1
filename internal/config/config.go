package config

import (
	"time"
)

// Config is the complete gateway configuration. Values come from defaults,
// the user config file and ASCGATE_* environment variables, in that order.
type Config struct {
	Auth      AuthConfig      `mapstructure:"auth"`
	API       APIConfig       `mapstructure:"api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Token     TokenConfig     `mapstructure:"token"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AuthConfig identifies the API key used to sign credentials.
// One of PrivateKeyPath or PrivateKey is required.
type AuthConfig struct {
	KeyID          string `mapstructure:"key_id"`
	IssuerID       string `mapstructure:"issuer_id"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	PrivateKey     string `mapstructure:"private_key"`
}

// APIConfig controls the retrying executor.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// RateLimitConfig controls the local sliding window.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// TokenConfig controls credential lifetime.
type TokenConfig struct {
	Lifetime      time.Duration `mapstructure:"lifetime"`
	RefreshBuffer time.Duration `mapstructure:"refresh_buffer"`
	Audience      string        `mapstructure:"audience"`
}

// UploadConfig controls byte range transfers.
type UploadConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects SIMPLE console output or STRUCTURED JSON.
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}
