// Package logging builds the slog loggers used across the tool.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures a logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Unknown values
	// fall back to info.
	Level string
	// Format is "text" or "json".
	Format string
	// Output defaults to stderr so rendered HTML on stdout stays clean.
	Output io.Writer
}

// New builds a logger from the options.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent tags a logger with the subsystem it serves.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}
