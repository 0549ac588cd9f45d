package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/adwire/conveyor/run"
)

// Deadline returns middleware that enforces the run's wall-clock budget as
// a context deadline. The deadline is anchored to the run's start, not to
// the handler call, so nested handlers all share the remaining budget.
// A run without a MaxRuntime passes through untouched.
func Deadline(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *run.Run, next Handler) error {
		if r.MaxRuntime > 0 {
			deadline := r.StartedAt.Add(r.MaxRuntime)
			logger.Debug("run deadline set",
				slog.String("run_id", r.ID.String()),
				slog.Time("deadline", deadline),
				slog.Duration("remaining", time.Until(deadline)),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, deadline)
			defer cancel()
		}
		return next(ctx)
	}
}
