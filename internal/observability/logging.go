package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig configures structured logging output.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" or "text". JSON is the production default.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewLogger builds a slog.Logger from the config. Components derive their
// own loggers with logger.With("component", name).
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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
