// Package run defines the descriptor for one triggered step invocation and
// the explicit result record it produces. Counters live in the result, not
// in shared mutable state, so a run's outcome is independently testable.
package run

import (
	"fmt"
	"time"

	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/pipeline"
)

// Run describes one independently triggered, run-to-completion invocation
// of a pipeline step for a source.
type Run struct {
	ID            id.RunID
	Source        string
	IntegrationID string
	Step          pipeline.Step
	CorrelationID string
	Backfill      bool

	// StartedAt and MaxRuntime form the run's wall-clock budget.
	StartedAt  time.Time
	MaxRuntime time.Duration
}

// Elapsed returns the wall-clock time since the run started.
func (r *Run) Elapsed() time.Duration {
	return time.Since(r.StartedAt)
}

// OverBudget reports whether the run's wall-clock budget is exhausted.
// A zero MaxRuntime disables the budget.
func (r *Run) OverBudget() bool {
	return r.MaxRuntime > 0 && r.Elapsed() > r.MaxRuntime
}

// Outcome is a step handler's tagged verdict for one work item. Handlers
// return an Outcome instead of overloading error types, so "stop this item"
// and "stop everything" stay distinguishable.
type Outcome int

// Handler outcomes.
const (
	// Continue means the item was processed successfully.
	Continue Outcome = iota
	// Warn means the handler ran out of time budget and the item should
	// be left Pending for the next trigger to resume.
	Warn
	// Fail means the item's processing failed after retries exhausted.
	Fail
)

// String returns the outcome's name.
func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Warn:
		return "warn"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the explicit record a run returns instead of mutating shared
// counters across nested loops.
type Result struct {
	// Completed counts items that finished the step successfully.
	Completed int
	// Warnings counts items left Pending because the run's budget ran
	// out. Warnings never raise the aggregate error.
	Warnings int
	// Errors counts items whose handler failed after retries exhausted.
	Errors int
	// Restated counts superseded artifacts cleaned up after the new
	// items completed.
	Restated int
	// Deduped counts duplicate deliveries collapsed out of the queue.
	Deduped int
}

// Err returns a single aggregate error when the run accumulated item
// failures, so orchestration-level alerting sees "N errors in run X"
// rather than N separate failures. Warnings alone return nil.
func (res Result) Err(jobName string) error {
	if res.Errors == 0 {
		return nil
	}
	return fmt.Errorf("run %s: %d item(s) failed", jobName, res.Errors)
}
