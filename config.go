package conveyor

import "time"

// Config holds the per-run tunables the engine applies when a step is
// triggered. Per-source overrides come from the config package; zero
// fields fall back to these defaults.
type Config struct {
	// MaxRuntime is the wall-clock budget for one run. Exceeding it
	// mid-run leaves unprocessed items Pending and records a Warning.
	MaxRuntime time.Duration

	// MaxRetry is the per-call attempt budget consulted by the backoff
	// strategy.
	MaxRetry int

	// MaxParallelism bounds the per-entity fan-out within one run.
	MaxParallelism int

	// PageSize is the batch size for "top N pending items" reads.
	PageSize int

	// GuardTTL is how long a duplicate-run guard claim is held before
	// it expires on its own.
	GuardTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRuntime:     50 * time.Minute,
		MaxRetry:       3,
		MaxParallelism: 4,
		PageSize:       100,
		GuardTTL:       1 * time.Hour,
	}
}
