// Package logger configures the zerolog logger shared across the service.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger. level is one of zerolog's level names
// (trace through panic); anything unparseable falls back to info. format
// "pretty" selects the console writer for local development, everything
// else emits JSON lines on stdout.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(logWriter(format)).
		With().
		Timestamp().
		Caller().
		Logger()
}

func logWriter(format string) io.Writer {
	if format == "pretty" {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}
