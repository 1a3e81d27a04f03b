package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger. format is "console" or "json".
func Init(verbose bool, format string) {
	log.Logger = Configure(os.Stderr, verbose, format)
}

// Configure sets the global level and returns a logger writing to w
func Configure(w io.Writer, verbose bool, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05",
		}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}
