// Package retry wraps arbitrary operations in an attempt loop bounded by two
// independent budgets: the backoff strategy's per-call attempt budget, and a
// per-run wall-clock budget shared by every call made during the run. A
// single connector run fans out across many reports and pages, and an
// individual call must not retry so long that it starves the run's overall
// time budget.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adwire/conveyor"
	"github.com/adwire/conveyor/backoff"
)

// Executor runs operations with retries. Create one per run: the wall-clock
// budget is measured from construction, so every call sharing the executor
// also shares the run's remaining time.
type Executor struct {
	strategy   backoff.Strategy
	maxRuntime time.Duration
	started    time.Time
	label      string
	logger     *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithLabel sets a stable identifier used only for diagnostic correlation
// in logs. It has no effect on retry behaviour.
func WithLabel(label string) Option {
	return func(e *Executor) { e.label = label }
}

// NewExecutor creates an Executor. maxRuntime bounds the wall clock across
// all calls made through this executor; zero disables the time budget, and
// a negative value marks it already exhausted, so the first failure
// propagates without further attempts.
func NewExecutor(strategy backoff.Strategy, maxRuntime time.Duration, opts ...Option) *Executor {
	e := &Executor{
		strategy:   strategy,
		maxRuntime: maxRuntime,
		started:    time.Now(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Elapsed returns the wall-clock time since the executor was created.
func (e *Executor) Elapsed() time.Duration {
	return time.Since(e.started)
}

// overBudget reports whether the wall-clock budget is exhausted. A negative
// budget was exhausted before the executor was even created.
func (e *Executor) overBudget() bool {
	if e.maxRuntime < 0 {
		return true
	}
	return e.maxRuntime > 0 && e.Elapsed() > e.maxRuntime
}

// Do runs op until it succeeds, the attempt budget is exhausted, the
// executor's wall-clock budget runs out, or ctx is cancelled.
//
// Cancellation and the wall-clock budget are hard external deadlines: they
// stop retrying immediately and do not consume a backoff attempt. Attempt
// exhaustion propagates the operation's last failure.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("retry %s: cancelled before first attempt: %w", e.label, err)
	}

	attempt := 0
	for {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		// Hard external deadlines come first and do not count as an
		// attempt. The context error stays in the chain so callers can
		// distinguish cancellation from the operation's own failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("retry %s: cancelled after %d attempts: %w (last failure: %w)",
				e.label, attempt+1, ctxErr, err)
		}
		if e.overBudget() {
			e.logger.Warn("retry run budget exceeded",
				slog.String("label", e.label),
				slog.Duration("elapsed", e.Elapsed()),
				slog.Duration("max_runtime", e.maxRuntime),
			)
			return zero, fmt.Errorf("%w: %s after %s: %w",
				conveyor.ErrBudgetExceeded, e.label, e.Elapsed().Round(time.Millisecond), err)
		}

		attempt++
		delay, ok := e.strategy.Delay(attempt)
		if !ok {
			return zero, fmt.Errorf("%w: %s after %d attempts: %w",
				conveyor.ErrRetriesExhausted, e.label, attempt, err)
		}

		e.logger.Debug("retrying after failure",
			slog.String("label", e.label),
			slog.Int("attempt", attempt),
			slog.Int("max_retry", e.strategy.MaxRetry()),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, fmt.Errorf("retry %s: cancelled during backoff: %w (last failure: %w)",
				e.label, sleepErr, err)
		}
	}
}

// Run is the error-only form of Do for operations with no result value.
func Run(ctx context.Context, e *Executor, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
