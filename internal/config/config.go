// Package config provides configuration loading and parsing for keygated.
package config

import (
	"strings"

	"github.com/relaykeys/keygated/internal/keyregistry"
	"github.com/relaykeys/keygated/internal/retry"
	"github.com/relaykeys/keygated/internal/validpool"
	"github.com/relaykeys/keygated/internal/verifier"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

// RuntimeConfig defines the interface for accessing runtime configuration that
// supports hot-reload. Components that need to observe config changes should
// use this interface instead of holding a direct *Config pointer, which would
// become stale after hot-reload.
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config represents the complete keygated configuration: the set of upstream
// keys to manage plus the tunables for every Key Lifecycle Subsystem
// component.
type Config struct {
	Keys     []string           `yaml:"keys" toml:"keys"`
	Registry keyregistry.Config `yaml:"registry" toml:"registry"`
	Pool     validpool.Config   `yaml:"pool" toml:"pool"`
	Verifier verifier.Config    `yaml:"verifier" toml:"verifier"`
	Retry    retry.Config       `yaml:"retry" toml:"retry"`
	Logging  LoggingConfig      `yaml:"logging" toml:"logging"`
	Server   ServerConfig       `yaml:"server" toml:"server"`
}

// ServerConfig defines the status/admin HTTP surface: a small
// read-only endpoint exposing registry and pool statistics, not the (out of
// scope) request proxy itself.
type ServerConfig struct {
	Listen    string `yaml:"listen" toml:"listen"`
	TimeoutMS int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// GetTimeoutOption returns the status server's read/write timeout as an
// Option. Returns None if TimeoutMS is zero (use default).
func (s *ServerConfig) GetTimeoutOption() mo.Option[int] {
	if s.TimeoutMS <= 0 {
		return mo.None[int]()
	}

	return mo.Some(s.TimeoutMS)
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"` // enable colored console output
}

// ParseLevel converts a string log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
