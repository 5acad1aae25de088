package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured logger for the environment, writing to
// stdout. Production uses JSON at info level; anything else uses text at
// debug level.
func NewLogger(env string) *slog.Logger {
	return New(env, os.Stdout)
}

// New is NewLogger with an explicit destination.
func New(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("service", "auth"))
}
