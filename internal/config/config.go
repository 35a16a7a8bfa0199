package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Policy    PolicyConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// UpstreamConfig holds settings for the proxied site.
type UpstreamConfig struct {
	BaseURL   string        `envconfig:"UPSTREAM_BASE_URL" default:"https://x.com"`
	UserAgent string        `envconfig:"UPSTREAM_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	Timeout   time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	// RequestsPerSecond caps outbound calls to the proxied site; 0 means
	// unlimited.
	RequestsPerSecond float64 `envconfig:"UPSTREAM_RPS" default:"0"`
}

// PolicyConfig holds policy table configuration.
type PolicyConfig struct {
	// TablePath points to a YAML policy table; empty means the built-in table.
	TablePath string `envconfig:"POLICY_TABLE_PATH" default:""`
	// Debug enables per-verdict classifier logging. Never on in a release build.
	Debug bool `envconfig:"POLICY_DEBUG" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://x.com",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
		},
		Policy: PolicyConfig{
			TablePath: "",
			Debug:     false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
