// Package logging constructs the zerolog logger shared across components.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger writing JSON lines to w at the given level. An
// unknown level falls back to info. Pass io.Discard to silence logging
// entirely, which the TUI does to keep the screen clean.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
