// Package config provides configuration loading, parsing, and validation for keygated.
package config

import (
	"net"
	"strings"
)

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":      true, // Empty defaults to info
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // Empty defaults to json
	"json":    true,
	"console": true,
	"text":    true, // Alias for console
}

// Validate checks the configuration for errors.
// It validates all required fields, valid values, and cross-field constraints.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{Errors: nil}

	validateKeys(c, errs)
	validateServer(c, errs)
	validateLogging(c, errs)
	validateTunables(c, errs)

	return errs.ToError()
}

// validateKeys validates the managed key list.
func validateKeys(cfg *Config, errs *ValidationError) {
	if len(cfg.Keys) == 0 {
		errs.Add("keys is required and must contain at least one entry")
		return
	}

	seen := make(map[string]bool, len(cfg.Keys))

	for _, k := range cfg.Keys {
		if k == "" {
			errs.Add("keys must not contain empty entries")
			continue
		}

		if seen[k] {
			errs.Addf("duplicate key entry: %q", k)
		}

		seen[k] = true
	}
}

// validateServer validates the status server configuration section.
func validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Listen == "" {
		errs.Add("server.listen is required")
	} else {
		validateListenAddress(cfg.Server.Listen, errs)
	}

	if cfg.Server.TimeoutMS < 0 {
		errs.Add("server.timeout_ms must be >= 0")
	}
}

// validateListenAddress validates a listen address in host:port format.
func validateListenAddress(addr string, errs *ValidationError) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Addf("server.listen must be in host:port format (got %q)", addr)
		return
	}

	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				errs.Add("server.listen host contains invalid characters")
			}
		}
	}

	if port == "" {
		errs.Add("server.listen port is required")
	}
}

// validateLogging validates the logging configuration section.
func validateLogging(cfg *Config, errs *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error)",
			cfg.Logging.Level)
	}

	if !validLogFormats[strings.ToLower(cfg.Logging.Format)] {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, text)",
			cfg.Logging.Format)
	}
}

// validateTunables validates the non-negative numeric tunables of the
// registry, pool, verifier, and retry sub-configs. Each sub-config owns its
// own defaulting via its Get*() accessors; validation here only rejects
// values that can never be sensible (negative counts, negative durations).
func validateTunables(cfg *Config, errs *ValidationError) {
	if cfg.Registry.MaxFailures < 0 {
		errs.Add("registry.max_failures must be >= 0")
	}

	if cfg.Registry.MaxRetries < 0 {
		errs.Add("registry.max_retries must be >= 0")
	}

	if cfg.Registry.QuotaResetHour < 0 || cfg.Registry.QuotaResetHour > 23 {
		errs.Add("registry.quota_reset_hour must be between 0 and 23")
	}

	if cfg.Pool.PoolSize < 0 {
		errs.Add("pool.pool_size must be >= 0")
	}

	if cfg.Pool.TTL < 0 {
		errs.Add("pool.ttl must be >= 0")
	}

	if cfg.Pool.MinThreshold < 0 {
		errs.Add("pool.min_threshold must be >= 0")
	}

	if cfg.Pool.RatePerSecond < 0 {
		errs.Add("pool.rate_per_second must be >= 0")
	}

	if cfg.Verifier.Interval < 0 {
		errs.Add("verifier.interval must be >= 0")
	}

	if cfg.Verifier.BatchSize < 0 {
		errs.Add("verifier.batch_size must be >= 0")
	}

	if cfg.Verifier.RatePerSecond < 0 {
		errs.Add("verifier.rate_per_second must be >= 0")
	}

	if cfg.Retry.MaxRetries < 0 {
		errs.Add("retry.max_retries must be >= 0")
	}
}
