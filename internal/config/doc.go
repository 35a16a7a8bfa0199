// Package config provides 12-factor configuration for the gateway.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Upstream: proxied site settings (base URL, user agent, timeout)
//   - Policy: policy table source and classifier debug switch
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Gateway on %s:%s proxying %s\n", cfg.Server.Host, cfg.Server.Port, cfg.Upstream.BaseURL)
//
// Environment Variables:
//   - PORT, HOST
//   - UPSTREAM_BASE_URL, UPSTREAM_USER_AGENT, UPSTREAM_TIMEOUT, UPSTREAM_RPS
//   - POLICY_TABLE_PATH, POLICY_DEBUG
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
