package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/adwire/conveyor/run"
)

// Logging returns middleware that logs run start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *run.Run, next Handler) error {
		logger.Info("run started",
			slog.String("run_id", r.ID.String()),
			slog.String("source", r.Source),
			slog.String("step", r.Step.String()),
			slog.String("correlation_id", r.CorrelationID),
			slog.Bool("backfill", r.Backfill),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("run failed",
				slog.String("run_id", r.ID.String()),
				slog.String("source", r.Source),
				slog.String("step", r.Step.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("run completed",
				slog.String("run_id", r.ID.String()),
				slog.String("source", r.Source),
				slog.String("step", r.Step.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
