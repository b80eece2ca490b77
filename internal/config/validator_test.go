package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultListenAddr = "127.0.0.1:8787"

func TestValidateValidMinimalConfig(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidateRequiresKeys(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()
	cfg.Keys = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keys is required")
}

func TestValidateRejectsEmptyKeyEntry(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()
	cfg.Keys = []string{"sk-1", ""}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty entries")
}

func TestValidateRejectsDuplicateKeys(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()
	cfg.Keys = []string{"sk-1", "sk-1"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key entry")
}

func TestValidateRequiresServerListen(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()
	cfg.Server.Listen = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.listen is required")
}

func TestValidateListenAddressFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		listen  string
		wantErr bool
	}{
		{name: "host and port", listen: "127.0.0.1:8787", wantErr: false},
		{name: "all interfaces", listen: ":8787", wantErr: false},
		{name: "hostname", listen: "localhost:8787", wantErr: false},
		{name: "missing port", listen: "127.0.0.1", wantErr: true},
		{name: "empty", listen: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MakeTestConfig()
			cfg.Server.Listen = tt.listen

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRejectsNegativeServerTimeout(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()
	cfg.Server.TimeoutMS = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.timeout_ms")
}

func TestValidateLoggingLevelsAndFormats(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"", "debug", "info", "warn", "error", "DEBUG"} {
		cfg := MakeTestConfig()
		cfg.Logging.Level = level

		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}

	cfg := MakeTestConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())

	for _, format := range []string{"", "json", "console", "text"} {
		cfg := MakeTestConfig()
		cfg.Logging.Format = format

		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}

	cfg = MakeTestConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeTunables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"registry.max_failures", func(c *Config) { c.Registry.MaxFailures = -1 }},
		{"registry.max_retries", func(c *Config) { c.Registry.MaxRetries = -1 }},
		{"registry.quota_reset_hour", func(c *Config) { c.Registry.QuotaResetHour = 24 }},
		{"pool.pool_size", func(c *Config) { c.Pool.PoolSize = -1 }},
		{"pool.ttl", func(c *Config) { c.Pool.TTL = -1 }},
		{"pool.min_threshold", func(c *Config) { c.Pool.MinThreshold = -1 }},
		{"pool.rate_per_second", func(c *Config) { c.Pool.RatePerSecond = -1 }},
		{"verifier.interval", func(c *Config) { c.Verifier.Interval = -1 }},
		{"verifier.batch_size", func(c *Config) { c.Verifier.BatchSize = -1 }},
		{"verifier.rate_per_second", func(c *Config) { c.Verifier.RatePerSecond = -1 }},
		{"retry.max_retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MakeTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.name)
		})
	}
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := MakeTestConfig()
	cfg.Keys = nil
	cfg.Server.Listen = ""
	cfg.Logging.Level = "bogus"

	err := cfg.Validate()
	require.Error(t, err)

	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(ve.Errors), 3)
}
