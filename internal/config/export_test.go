package config

import (
	"time"

	"github.com/relaykeys/keygated/internal/keyregistry"
	"github.com/relaykeys/keygated/internal/retry"
	"github.com/relaykeys/keygated/internal/validpool"
	"github.com/relaykeys/keygated/internal/verifier"
)

// DetectFormat exports detectFormat for testing.
var DetectFormat = detectFormat

// Test helpers with all fields initialized for exhaustruct compliance.

// MakeTestConfig returns a minimal valid Config with all fields set.
func MakeTestConfig() *Config {
	return &Config{
		Keys:     []string{"sk-test-1", "sk-test-2"},
		Registry: MakeTestRegistryConfig(),
		Pool:     MakeTestPoolConfig(),
		Verifier: MakeTestVerifierConfig(),
		Retry:    MakeTestRetryConfig(),
		Logging:  MakeTestLoggingConfig(),
		Server:   MakeTestServerConfig(),
	}
}

// MakeTestServerConfig returns a minimal ServerConfig with all fields set.
func MakeTestServerConfig() ServerConfig {
	return ServerConfig{
		Listen:    "127.0.0.1:8787",
		TimeoutMS: 60000,
	}
}

// MakeTestLoggingConfig returns a minimal LoggingConfig with all fields set.
func MakeTestLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
		Pretty: false,
	}
}

// MakeTestRegistryConfig returns a minimal keyregistry.Config with all
// fields set.
func MakeTestRegistryConfig() keyregistry.Config {
	return keyregistry.Config{
		MaxFailures:    5,
		MaxRetries:     3,
		Timezone:       "UTC",
		QuotaResetHour: 0,
	}
}

// MakeTestPoolConfig returns a minimal validpool.Config with all fields
// set.
func MakeTestPoolConfig() validpool.Config {
	return validpool.Config{
		PoolSize:             100,
		TTL:                  2 * time.Hour,
		MinThreshold:         10,
		EmergencyRefillCount: 10,
		TestModel:            "test-model",
		VerificationCacheTTL: 5 * time.Minute,
		RatePerSecond:        5,
		MaintenanceSpacing:   100 * time.Millisecond,
	}
}

// MakeTestVerifierConfig returns a minimal verifier.Config with all fields
// set.
func MakeTestVerifierConfig() verifier.Config {
	return verifier.Config{
		Interval:                4 * time.Hour,
		BatchSize:               20,
		TestModel:               "test-model",
		RatePerSecond:           5,
		BreakerFailureThreshold: 5,
		BreakerOpenDuration:     time.Minute,
		StartupJitter:           2 * time.Second,
	}
}

// MakeTestRetryConfig returns a minimal retry.Config with all fields set.
func MakeTestRetryConfig() retry.Config {
	return retry.Config{
		MaxRetries: 3,
	}
}

// MakeTestValidationError returns a ValidationError with Errors initialized.
func MakeTestValidationError() *ValidationError {
	return &ValidationError{
		Errors: []string{},
	}
}
