package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog zerolog.Logger

func init() {
	// Sensible default until Init runs (tests, tooling).
	zlog = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init initializes the global structured logger. Console output for
// development, JSON for production.
func Init(env string) {
	var w io.Writer

	if env == "development" || env == "dev" || env == "local" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	} else {
		w = os.Stdout
	}

	zlog = zerolog.New(w).With().
		Timestamp().
		Str("service", "messagerie-backend").
		Logger()

	zerolog.TimeFieldFormat = time.RFC3339
}

// GetLogger returns the global zerolog logger.
func GetLogger() *zerolog.Logger {
	return &zlog
}

// WithRequestID returns a logger with a request_id field.
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}

// WithIdentity returns a logger with user identity fields.
func WithIdentity(userID int64, role string) zerolog.Logger {
	return zlog.With().Int64("user_id", userID).Str("user_role", role).Logger()
}
