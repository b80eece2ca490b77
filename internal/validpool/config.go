package validpool

import "time"

// Config tunes the Valid Key Pool.
type Config struct {
	// PoolSize is the queue's strict capacity. Default 100.
	PoolSize int `yaml:"pool_size" toml:"pool_size"`
	// TTL is how long a verified entry stays usable. Default 2h.
	TTL time.Duration `yaml:"ttl" toml:"ttl"`
	// MinThreshold biases the refill-scheduling policy. Default 10.
	MinThreshold int `yaml:"min_threshold" toml:"min_threshold"`
	// EmergencyRefillCount is how many keys emergency refill samples without
	// replacement. Default 10.
	EmergencyRefillCount int `yaml:"emergency_refill_count" toml:"emergency_refill_count"`
	// TestModel is the model name used for the synthetic verification call.
	TestModel string `yaml:"test_model" toml:"test_model"`
	// VerificationCacheTTL bounds how long a failed verification attempt
	// suppresses a key from refill candidacy. Default 5m.
	VerificationCacheTTL time.Duration `yaml:"verification_cache_ttl" toml:"verification_cache_ttl"`
	// RatePerSecond bounds outbound verification call concurrency during
	// emergency refill. Default 5.
	RatePerSecond float64 `yaml:"rate_per_second" toml:"rate_per_second"`
	// MaintenanceSpacing is the pause between add-attempts inside a single
	// maintenance() run. Default 100ms.
	MaintenanceSpacing time.Duration `yaml:"maintenance_spacing" toml:"maintenance_spacing"`
}

const (
	defaultPoolSize             = 100
	defaultTTL                  = 2 * time.Hour
	defaultMinThreshold         = 10
	defaultEmergencyRefillCount = 10
	defaultVerificationCacheTTL = 5 * time.Minute
	defaultRatePerSecond        = 5.0
	defaultMaintenanceSpacing   = 100 * time.Millisecond

	maintenanceTargetAdds = 10
	validationSampleSize  = 5
)

// GetPoolSize returns the configured capacity or its default.
func (c Config) GetPoolSize() int {
	if c.PoolSize <= 0 {
		return defaultPoolSize
	}

	return c.PoolSize
}

// GetTTL returns the configured entry lifetime or its default.
func (c Config) GetTTL() time.Duration {
	if c.TTL <= 0 {
		return defaultTTL
	}

	return c.TTL
}

// GetMinThreshold returns the configured refill-bias threshold or its
// default.
func (c Config) GetMinThreshold() int {
	if c.MinThreshold <= 0 {
		return defaultMinThreshold
	}

	return c.MinThreshold
}

// GetEmergencyRefillCount returns the configured sample size or its
// default.
func (c Config) GetEmergencyRefillCount() int {
	if c.EmergencyRefillCount <= 0 {
		return defaultEmergencyRefillCount
	}

	return c.EmergencyRefillCount
}

// GetVerificationCacheTTL returns the configured suppression window or its
// default.
func (c Config) GetVerificationCacheTTL() time.Duration {
	if c.VerificationCacheTTL <= 0 {
		return defaultVerificationCacheTTL
	}

	return c.VerificationCacheTTL
}

// GetRatePerSecond returns the configured verification call rate or its
// default.
func (c Config) GetRatePerSecond() float64 {
	if c.RatePerSecond <= 0 {
		return defaultRatePerSecond
	}

	return c.RatePerSecond
}

// GetMaintenanceSpacing returns the configured inter-attempt pause or its
// default.
func (c Config) GetMaintenanceSpacing() time.Duration {
	if c.MaintenanceSpacing <= 0 {
		return defaultMaintenanceSpacing
	}

	return c.MaintenanceSpacing
}
