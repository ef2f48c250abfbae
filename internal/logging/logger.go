// Package logging builds the broker's zerolog.Logger, keeping the
// level/format knobs and error helpers consistent across every component
// rather than letting packages reach for the global logger independently.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/lattice-io/pubsub-broker/internal/config"
)

// Config selects a logger's minimum level and output format.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// FromAppConfig derives a logging Config from the broker's loaded Config.
func FromAppConfig(cfg *config.Config) Config {
	return Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
}

// New builds a zerolog.Logger stamped with the broker's service name,
// a timestamp, and caller information.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	var level zerolog.Level
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "pubsubd").
		Logger()
}

// LogError logs err with msg and arbitrary context fields.
func LogError(logger zerolog.Logger, err error, msg string, fields map[string]any) {
	event := logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// LogPanic logs a recovered panic with its stack trace. Intended for use in
// deferred recover() blocks guarding worker goroutines.
func LogPanic(logger zerolog.Logger, panicValue any, msg string, fields map[string]any) {
	event := logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
