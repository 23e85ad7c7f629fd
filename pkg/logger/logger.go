package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service-wide structured logger. JSON to stdout; level via
// LOG_LEVEL (debug/info/warn/error), defaulting to info.
func New(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", service).Logger()
}
