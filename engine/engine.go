package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/adwire/conveyor"
	"github.com/adwire/conveyor/backoff"
	"github.com/adwire/conveyor/fanout"
	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/identity"
	"github.com/adwire/conveyor/middleware"
	"github.com/adwire/conveyor/pipeline"
	"github.com/adwire/conveyor/retry"
	"github.com/adwire/conveyor/run"
	"github.com/adwire/conveyor/workitem"
)

// ──────────────────────────────────────────────────
// Contracts
// ──────────────────────────────────────────────────

// Guard prevents two logically-equivalent runs from executing at once.
// AcquireRun claims key for ttl and reports whether the claim succeeded;
// a false return with nil error means another run already holds the key.
type Guard interface {
	AcquireRun(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseRun(ctx context.Context, key string) error
}

// Cleaner removes staged artifact files that a restatement superseded.
// It returns how many files it actually removed; files outside the
// configured cleanup folders are skipped, not errors.
type Cleaner interface {
	Clean(ctx context.Context, files []workitem.FileItem) (int, error)
}

// ItemHandler processes one work item for the run's current step. The
// outcome says what happens to the item next: Continue hands it to the next
// step, Warn leaves it Pending for the next trigger, Fail parks it in Error.
type ItemHandler func(ctx context.Context, r *run.Run, it *workitem.Item) (run.Outcome, error)

// ──────────────────────────────────────────────────
// Engine
// ──────────────────────────────────────────────────

// Engine executes pipeline steps over a work-item store.
type Engine struct {
	items   workitem.Store
	guard   Guard
	cleaner Cleaner
	limits  *fanout.Manager
	cfg     conveyor.Config
	bo      backoff.Strategy
	mws     []middleware.Middleware
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithConfig overrides the default run tunables.
func WithConfig(cfg conveyor.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithBackoff sets the strategy handed to per-item retry executors.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(e *Engine) { e.bo = strategy }
}

// WithCleaner sets the artifact cleaner used after restatements complete.
// Without one, superseded artifacts are left in place and not counted.
func WithCleaner(c Cleaner) Option {
	return func(e *Engine) { e.cleaner = c }
}

// WithFanout sets the per-source rate and concurrency limits consulted
// before each item is dispatched. A run that hits its source's limits
// leaves the remaining items Pending and records a Warning.
func WithFanout(m *fanout.Manager) Option {
	return func(e *Engine) { e.limits = m }
}

// WithMiddleware appends middleware applied around every item handler
// invocation, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, mws...) }
}

// New creates an Engine over the given work-item store and run guard.
func New(items workitem.Store, guard Guard, opts ...Option) (*Engine, error) {
	if items == nil {
		return nil, conveyor.ErrNoStore
	}
	e := &Engine{
		items:  items,
		guard:  guard,
		cfg:    conveyor.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bo == nil {
		e.bo = backoff.NewFixed(5*time.Second, e.cfg.MaxRetry)
	}
	return e, nil
}

// Retry returns a retry executor scoped to the remainder of the run's
// wall-clock budget, for handlers that call flaky externals. Attempts are
// bounded by the engine's backoff strategy; the budget is bounded by
// whatever the run has left.
func (e *Engine) Retry(r *run.Run) *retry.Executor {
	var remaining time.Duration
	if r.MaxRuntime > 0 {
		remaining = r.MaxRuntime - r.Elapsed()
		if remaining <= 0 {
			// Over budget already: zero would disable the executor's
			// time bound instead of exhausting it.
			remaining = -1
		}
	}
	return retry.NewExecutor(e.bo, remaining,
		retry.WithLogger(e.logger),
		retry.WithLabel(r.CorrelationID),
	)
}

// ──────────────────────────────────────────────────
// Discovery
// ──────────────────────────────────────────────────

// Discover merges freshly discovered items into the pending queue for the
// identity's current step. Discovered items are collapsed against what is
// already queued: losers already in the queue are deleted, winning new
// items are created. It returns how many items were actually queued.
func (e *Engine) Discover(ctx context.Context, ident *identity.Identity, discovered []*workitem.Item) (int, error) {
	step := ident.Step().Name
	queued, err := e.items.TopPending(ctx, ident.Source(), step, 0)
	if err != nil {
		return 0, fmt.Errorf("engine: read pending queue: %w", err)
	}

	known := make(map[id.ItemID]bool, len(queued))
	for _, it := range queued {
		known[it.ID] = true
	}

	now := time.Now().UTC()
	for _, it := range discovered {
		if it.ID.IsNil() {
			it.ID = id.NewItemID()
		}
		it.Step = step
		it.Status = workitem.StatusPending
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
	}

	keep, _ := workitem.Collapse(append(queued, discovered...))

	created := 0
	for _, it := range keep {
		if known[it.ID] {
			continue
		}
		if err := e.items.CreateItem(ctx, it); err != nil {
			return created, fmt.Errorf("engine: queue item %s: %w", it.ID, err)
		}
		created++
	}

	// Queued items that lost to a fresher delivery leave the queue now
	// rather than at execution time.
	for _, it := range queued {
		if isKept(keep, it.ID) {
			continue
		}
		if err := e.items.DeleteItem(ctx, it.ID); err != nil {
			return created, fmt.Errorf("engine: drop superseded item %s: %w", it.ID, err)
		}
	}

	e.logger.Info("discovery merged",
		slog.String("source", ident.Source()),
		slog.String("step", step),
		slog.Int("discovered", len(discovered)),
		slog.Int("created", created),
	)
	return created, nil
}

func isKept(keep []*workitem.Item, itemID id.ItemID) bool {
	for _, it := range keep {
		if it.ID == itemID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// Step execution
// ──────────────────────────────────────────────────

// ExecuteStep runs the path's current step for the given identity. The
// sequence is fixed: claim the run guard, page in pending items, collapse
// duplicates, detect restatements against processed history, then drive
// each surviving item through the handler. Items are processed one at a
// time; within an item, handlers own their own fan-out.
//
// The returned Result carries the run's counters even when err is non-nil.
// A second trigger racing this one gets conveyor.ErrRunActive.
func (e *Engine) ExecuteStep(ctx context.Context, path *pipeline.Path, ident *identity.Identity, handler ItemHandler) (run.Result, error) {
	var res run.Result

	r := &run.Run{
		ID:            id.NewRunID(),
		Source:        ident.Source(),
		IntegrationID: ident.IntegrationID(),
		Step:          path.Current(),
		CorrelationID: ident.CorrelationID(),
		Backfill:      ident.Backfill(),
		StartedAt:     time.Now().UTC(),
		MaxRuntime:    e.cfg.MaxRuntime,
	}

	key := ident.CacheKey()
	if e.guard != nil {
		ok, err := e.guard.AcquireRun(ctx, key, e.cfg.GuardTTL)
		if err != nil {
			return res, fmt.Errorf("engine: acquire run guard %s: %w", key, err)
		}
		if !ok {
			return res, fmt.Errorf("%w: %s", conveyor.ErrRunActive, key)
		}
		defer func() {
			if rerr := e.guard.ReleaseRun(context.WithoutCancel(ctx), key); rerr != nil {
				e.logger.Warn("run guard release failed",
					slog.String("key", key), slog.String("error", rerr.Error()))
			}
		}()
	}

	logger := e.logger.With(
		slog.String("run_id", r.ID.String()),
		slog.String("job", ident.JobName()),
		slog.String("correlation_id", r.CorrelationID),
	)
	logger.Info("run started",
		slog.String("step", r.Step.String()),
		slog.Bool("backfill", r.Backfill),
	)

	items, err := e.items.TopPending(ctx, r.Source, r.Step.Name, e.cfg.PageSize)
	if err != nil {
		return res, fmt.Errorf("engine: read pending queue: %w", err)
	}

	keep, drop := workitem.Collapse(items)
	for _, it := range drop {
		if err := e.items.DeleteItem(ctx, it.ID); err != nil {
			return res, fmt.Errorf("engine: drop duplicate item %s: %w", it.ID, err)
		}
		res.Deduped++
	}

	history, err := e.items.ProcessedHistory(ctx, r.IntegrationID)
	if err != nil {
		return res, fmt.Errorf("engine: read processed history: %w", err)
	}
	restatements := workitem.DetectRestatements(keep, history)

	chain := middleware.Chain(e.mws...)
	completed := make(map[id.ItemID]bool, len(keep))

	for i, it := range keep {
		if ctx.Err() != nil || r.OverBudget() {
			// Remaining items stay Pending; the next trigger resumes them.
			res.Warnings++
			logger.Warn("run budget exhausted",
				slog.Duration("elapsed", r.Elapsed()),
				slog.Int("remaining_items", len(keep)-i),
			)
			break
		}

		if e.limits != nil && !e.limits.Acquire(r.Source) {
			res.Warnings++
			logger.Warn("source limits reached, leaving remaining items pending",
				slog.String("source", r.Source),
				slog.Int("remaining_items", len(keep)-i),
			)
			break
		}
		outcome := e.processItem(ctx, logger, r, chain, it.ID, handler)
		if e.limits != nil {
			e.limits.Release(r.Source)
		}
		switch outcome {
		case run.Continue:
			completed[it.ID] = true
			res.Completed++
			if err := e.handOff(ctx, path, it.ID); err != nil {
				return res, err
			}
		case run.Warn:
			res.Warnings++
		case run.Fail:
			res.Errors++
		}
	}

	res.Restated = e.cleanRestatements(ctx, logger, restatements, completed)

	logger.Info("run finished",
		slog.Int("completed", res.Completed),
		slog.Int("warnings", res.Warnings),
		slog.Int("errors", res.Errors),
		slog.Int("deduped", res.Deduped),
		slog.Int("restated", res.Restated),
		slog.Duration("elapsed", r.Elapsed()),
	)
	return res, res.Err(ident.JobName())
}

// processItem drives one item through the handler and applies the resulting
// status transition. The item is re-read immediately before mutation: the
// queue snapshot may be stale by the time the loop reaches it.
func (e *Engine) processItem(ctx context.Context, logger *slog.Logger, r *run.Run, chain middleware.Middleware, itemID id.ItemID, handler ItemHandler) run.Outcome {
	it, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, conveyor.ErrItemNotFound) {
			// Another run claimed or deleted it since the snapshot.
			logger.Info("item vanished before processing", slog.String("item_id", itemID.String()))
			return run.Warn
		}
		logger.Error("item re-read failed",
			slog.String("item_id", itemID.String()), slog.String("error", err.Error()))
		return run.Fail
	}

	if err := e.items.UpdateStatus(ctx, it.ID, workitem.StatusRunning); err != nil {
		logger.Error("item claim failed",
			slog.String("item_id", it.ID.String()), slog.String("error", err.Error()))
		return run.Fail
	}

	outcome, err := e.invoke(ctx, r, chain, it, handler)

	status := workitem.StatusComplete
	switch outcome {
	case run.Warn:
		status = workitem.StatusPending
	case run.Fail:
		status = workitem.StatusError
	}
	if uerr := e.items.UpdateStatus(ctx, it.ID, status); uerr != nil {
		logger.Error("item status update failed",
			slog.String("item_id", it.ID.String()), slog.String("error", uerr.Error()))
		return run.Fail
	}

	if err != nil {
		logger.Error("item handler failed",
			slog.String("item_id", it.ID.String()),
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
	return outcome
}

// invoke runs the handler inside the middleware chain. Chain handlers only
// carry an error, so the outcome is captured by closure; a chain error with
// no explicit verdict maps to Fail, except budget exhaustion and
// cancellation which map to Warn so the item stays Pending. Cancellation is
// recognized both on the context itself and in the error chain: the
// deadline middleware derives a child context invoke never sees.
func (e *Engine) invoke(ctx context.Context, r *run.Run, chain middleware.Middleware, it *workitem.Item, handler ItemHandler) (run.Outcome, error) {
	outcome := run.Continue
	terminal := func(ctx context.Context) error {
		o, err := handler(ctx, r, it)
		outcome = o
		return err
	}
	err := chain(ctx, r, terminal)
	if err != nil && outcome == run.Continue {
		if ctx.Err() != nil ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, conveyor.ErrBudgetExceeded) {
			return run.Warn, err
		}
		return run.Fail, err
	}
	return outcome, err
}

// handOff moves a completed item to the next step of the path, or archives
// it into processed history when the path ends here.
func (e *Engine) handOff(ctx context.Context, path *pipeline.Path, itemID id.ItemID) error {
	it, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("engine: hand off item %s: %w", itemID, err)
	}

	next, ok := path.Peek()
	if !ok {
		if err := e.items.ArchiveItem(ctx, it); err != nil {
			return fmt.Errorf("engine: archive item %s: %w", it.ID, err)
		}
		return nil
	}

	it.Step = next.Name
	it.Status = workitem.StatusPending
	if err := e.items.UpdateItem(ctx, it); err != nil {
		return fmt.Errorf("engine: requeue item %s for step %s: %w", it.ID, next.Name, err)
	}
	return nil
}

// cleanRestatements removes artifacts superseded by restatements whose new
// item completed in this run, fanning removals out up to MaxParallelism.
// A failed or deferred new item keeps its old artifacts untouched until a
// later run succeeds.
func (e *Engine) cleanRestatements(ctx context.Context, logger *slog.Logger, restatements []workitem.Restatement, completed map[id.ItemID]bool) int {
	if e.cleaner == nil || len(restatements) == 0 {
		return 0
	}

	var eligible []workitem.Restatement
	for _, rs := range restatements {
		if completed[rs.New.ID] {
			eligible = append(eligible, rs)
		}
	}
	if len(eligible) == 0 {
		return 0
	}

	var cleaned atomic.Int64
	err := fanout.ForEach(ctx, e.cfg.MaxParallelism, eligible, func(ctx context.Context, rs workitem.Restatement) error {
		removed, cerr := e.cleaner.Clean(ctx, rs.Old.Files)
		if cerr != nil {
			return fmt.Errorf("item %s: %w", rs.Old.ID, cerr)
		}
		logger.Info("restated artifacts cleaned",
			slog.String("old_item_id", rs.Old.ID.String()),
			slog.String("new_item_id", rs.New.ID.String()),
			slog.Int("files_removed", removed),
		)
		cleaned.Add(1)
		return nil
	})
	if err != nil {
		// Cleanup is best effort; superseded artifacts resurface on the
		// next restatement scan.
		logger.Warn("restatement cleanup incomplete", slog.String("error", err.Error()))
	}
	return int(cleaned.Load())
}

// AdvanceIdentity moves the path cursor and repositions the identity at the
// new step, resetting any one-shot delay. It reports whether a next step
// existed.
func AdvanceIdentity(path *pipeline.Path, ident *identity.Identity) (pipeline.Step, bool) {
	next, ok := path.Advance()
	if !ok {
		return pipeline.Step{}, false
	}
	ident.SetStep(next)
	return next, true
}
