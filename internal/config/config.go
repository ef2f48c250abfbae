// Package config loads broker configuration from environment variables (with
// an optional .env file) and applies CLI flag overrides on top, following the
// same load → validate → log sequence used throughout the example fleet this
// broker is descended from.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Config holds every tunable the broker needs at startup.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	// Listener
	Address   string `env:"PUBSUB_ADDRESS" envDefault:"127.0.0.1:8080"`
	StateFile string `env:"PUBSUB_STATE_FILE" envDefault:"./server.save.bin"`

	// Chunked log
	ChunkCapacity int `env:"PUBSUB_CHUNK_CAPACITY" envDefault:"256"`

	// Live delivery
	DeliveryIdleInterval time.Duration `env:"PUBSUB_DELIVERY_IDLE_INTERVAL" envDefault:"10ms"`

	// Admission control
	MaxConnections     int     `env:"PUBSUB_MAX_CONNECTIONS" envDefault:"2000"`
	CPURejectThreshold float64 `env:"PUBSUB_CPU_REJECT_THRESHOLD" envDefault:"85.0"`
	CPUPauseThreshold  float64 `env:"PUBSUB_CPU_PAUSE_THRESHOLD" envDefault:"90.0"`
	MaxRequestsPerSec  float64 `env:"PUBSUB_MAX_REQUESTS_PER_SEC" envDefault:"200"`

	// Session tokens
	JWTSecret     string        `env:"PUBSUB_JWT_SECRET" envDefault:"dev-secret-change-me"`
	SessionTTL    time.Duration `env:"PUBSUB_SESSION_TTL" envDefault:"24h"`

	// Monitoring
	MetricsAddress  string        `env:"PUBSUB_METRICS_ADDRESS" envDefault:":9090"`
	ResourceSampleInterval time.Duration `env:"PUBSUB_RESOURCE_SAMPLE_INTERVAL" envDefault:"5s"`

	// Logging
	LogLevel  string `env:"PUBSUB_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PUBSUB_LOG_FORMAT" envDefault:"json"`

	Environment string `env:"PUBSUB_ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from .env + environment variables, then applies
// flags parsed from args on top. Priority: flags > ENV vars > .env file >
// defaults. logger may be nil during the very first load before logging is
// initialized.
func Load(args []string, logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func applyFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("pubsubd", pflag.ContinueOnError)
	address := fs.String("address", cfg.Address, "listen address (host:port)")
	stateFile := fs.String("state-file", cfg.StateFile, "path to the persisted snapshot file")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug|info|warn|error")
	logFormat := fs.String("log-format", cfg.LogFormat, "json|console")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Address = *address
	cfg.StateFile = *stateFile
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat
	return nil
}

// Validate rejects configurations that cannot produce a working broker.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("PUBSUB_ADDRESS/--address is required")
	}
	if c.StateFile == "" {
		return fmt.Errorf("PUBSUB_STATE_FILE/--state-file is required")
	}
	if c.ChunkCapacity < 1 {
		return fmt.Errorf("PUBSUB_CHUNK_CAPACITY must be > 0, got %d", c.ChunkCapacity)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("PUBSUB_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("PUBSUB_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.CPUPauseThreshold < 0 || c.CPUPauseThreshold > 100 {
		return fmt.Errorf("PUBSUB_CPU_PAUSE_THRESHOLD must be 0-100, got %.1f", c.CPUPauseThreshold)
	}
	if c.CPUPauseThreshold < c.CPURejectThreshold {
		return fmt.Errorf("PUBSUB_CPU_PAUSE_THRESHOLD (%.1f) must be >= PUBSUB_CPU_REJECT_THRESHOLD (%.1f)",
			c.CPUPauseThreshold, c.CPURejectThreshold)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("PUBSUB_LOG_LEVEL must be one of: debug, info, warn, error (got %s)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("PUBSUB_LOG_FORMAT must be one of: json, console (got %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration as a structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("address", c.Address).
		Str("state_file", c.StateFile).
		Int("chunk_capacity", c.ChunkCapacity).
		Dur("delivery_idle_interval", c.DeliveryIdleInterval).
		Int("max_connections", c.MaxConnections).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Float64("cpu_pause_threshold", c.CPUPauseThreshold).
		Float64("max_requests_per_sec", c.MaxRequestsPerSec).
		Dur("session_ttl", c.SessionTTL).
		Str("metrics_address", c.MetricsAddress).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
