// Package middleware wraps shell commands with cross-cutting behavior.
package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Command is one dispatched menu action.
type Command func(ctx context.Context) error

// Logging returns a Command that logs every run of next.
// It logs the command name, duration, and any error.
func Logging(name string, next Command) Command {
	return func(ctx context.Context) error {
		start := time.Now()

		err := next(ctx)

		duration := time.Since(start).Milliseconds()
		switch {
		case err == nil:
			slog.Debug("Command ok",
				"command", name,
				"duration_ms", duration,
			)
		case errors.Is(err, io.EOF):
			slog.Info("Command aborted",
				"command", name,
				"reason", "end of input",
				"duration_ms", duration,
			)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			slog.Warn("Command interrupted",
				"command", name,
				"error", err,
				"duration_ms", duration,
			)
		default:
			slog.Error("Command error",
				"command", name,
				"error", err,
				"duration_ms", duration,
			)
		}

		return err
	}
}
