// Package logger builds the zerolog loggers the sync agent components share.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout tagged with the component name.
// Unparseable or empty level strings fall back to info so a bad
// SATLAS_LOG_LEVEL never silences the agent.
func New(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Str("component", component).
		Timestamp().
		Logger()
}
