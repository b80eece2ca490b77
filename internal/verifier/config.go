package verifier

import "time"

// Config tunes the Scheduled Verifier's batching, staggering, and the
// breaker/limiter guarding its upstream probe.
type Config struct {
	// Interval is the wall-clock period between verifier runs. Default 4h.
	Interval time.Duration `yaml:"interval" toml:"interval"`
	// BatchSize bounds how many keys are verified per batch. Default 20.
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
	// TestModel is the model name used for the synthetic verification call.
	TestModel string `yaml:"test_model" toml:"test_model"`
	// RatePerSecond bounds outbound verification call concurrency. Default 5.
	RatePerSecond float64 `yaml:"rate_per_second" toml:"rate_per_second"`
	// BreakerFailureThreshold is consecutive probe failures before the
	// breaker trips. Default 5.
	BreakerFailureThreshold uint32 `yaml:"breaker_failure_threshold" toml:"breaker_failure_threshold"`
	// BreakerOpenDuration is how long the breaker stays open before
	// half-open probing resumes. Default 1m.
	BreakerOpenDuration time.Duration `yaml:"breaker_open_duration" toml:"breaker_open_duration"`
	// StartupJitter bounds a random delay added before the first run, so a
	// fleet of verifiers doesn't fire in lockstep. Default 2s.
	StartupJitter time.Duration `yaml:"startup_jitter" toml:"startup_jitter"`
}

const (
	defaultInterval                = 4 * time.Hour
	defaultBatchSize               = 20
	defaultRatePerSecond           = 5.0
	defaultBreakerFailureThreshold = 5
	defaultBreakerOpenDuration     = time.Minute
	defaultStartupJitter           = 2 * time.Second
)

// GetInterval returns the configured run interval or its default.
func (c Config) GetInterval() time.Duration {
	if c.Interval <= 0 {
		return defaultInterval
	}

	return c.Interval
}

// GetBatchSize returns the configured batch size or its default.
func (c Config) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return defaultBatchSize
	}

	return c.BatchSize
}

// GetRatePerSecond returns the configured verification call rate or its
// default.
func (c Config) GetRatePerSecond() float64 {
	if c.RatePerSecond <= 0 {
		return defaultRatePerSecond
	}

	return c.RatePerSecond
}

// GetBreakerFailureThreshold returns the configured threshold or its
// default.
func (c Config) GetBreakerFailureThreshold() uint32 {
	if c.BreakerFailureThreshold == 0 {
		return defaultBreakerFailureThreshold
	}

	return c.BreakerFailureThreshold
}

// GetBreakerOpenDuration returns the configured open duration or its
// default.
func (c Config) GetBreakerOpenDuration() time.Duration {
	if c.BreakerOpenDuration <= 0 {
		return defaultBreakerOpenDuration
	}

	return c.BreakerOpenDuration
}

// GetStartupJitter returns the configured startup jitter bound or its
// default.
func (c Config) GetStartupJitter() time.Duration {
	if c.StartupJitter <= 0 {
		return defaultStartupJitter
	}

	return c.StartupJitter
}
