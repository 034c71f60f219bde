// Package logging builds the zerolog loggers used across the module.
//
// Loggers are constructed once per session and handed to components
// explicitly; nothing in this module logs through ambient global state.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for constructing a session logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Console bool      // human-readable console output instead of JSON
}

// New builds the base logger for a session.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Components default to it so
// that a caller who never wires logging still gets a usable object.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
