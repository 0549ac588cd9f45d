// Package backoff provides pluggable retry delay strategies for remote calls.
// All strategies are safe for concurrent use (they are stateless).
//
// Unlike an unbounded delay curve, every strategy here carries an attempt
// budget: Delay reports ok=false once the attempt number exceeds MaxRetry,
// and callers must treat that as a terminal failure rather than a zero-delay
// retry.
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed)
	// and whether the attempt is within budget. Attempt 1 is the first
	// retry after the initial failure. ok=false means the attempt budget
	// is exhausted and no further retry may be made.
	Delay(attempt int) (d time.Duration, ok bool)

	// MaxRetry returns the attempt budget.
	MaxRetry() int
}

// ──────────────────────────────────────────────────
// Fixed
// ──────────────────────────────────────────────────

// Fixed grows the delay linearly from a configured unit.
// Delay = Unit * attempt, for attempt in [1, Max].
type Fixed struct {
	Unit time.Duration
	Max  int
}

// NewFixed creates a fixed-step backoff strategy.
func NewFixed(unit time.Duration, maxRetry int) *Fixed {
	return &Fixed{Unit: unit, Max: maxRetry}
}

// Delay returns Unit * attempt, or ok=false past the attempt budget.
func (f *Fixed) Delay(attempt int) (time.Duration, bool) {
	if attempt > f.Max {
		return 0, false
	}
	return f.Unit * time.Duration(attempt), true
}

// MaxRetry returns the attempt budget.
func (f *Fixed) MaxRetry() int { return f.Max }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential raises a configured base to the attempt number.
// Delay = Base^attempt seconds, for attempt in [1, Max].
type Exponential struct {
	Base float64
	Max  int
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base float64, maxRetry int) *Exponential {
	return &Exponential{Base: base, Max: maxRetry}
}

// Delay returns Base^attempt seconds, or ok=false past the attempt budget.
func (e *Exponential) Delay(attempt int) (time.Duration, bool) {
	if attempt > e.Max {
		return 0, false
	}
	return time.Duration(math.Pow(e.Base, float64(attempt)) * float64(time.Second)), true
}

// MaxRetry returns the attempt budget.
func (e *Exponential) MaxRetry() int { return e.Max }

// ──────────────────────────────────────────────────
// Seeded
// ──────────────────────────────────────────────────

// Seeded multiplies a larger seed unit by the attempt number. It is meant
// for slow-recovering rate limits where even the first retry should wait
// a substantial interval.
// Delay = Seed * attempt, for attempt in [1, Max].
type Seeded struct {
	Seed time.Duration
	Max  int
}

// NewSeeded creates a multiplicative-seeded backoff strategy.
func NewSeeded(seed time.Duration, maxRetry int) *Seeded {
	return &Seeded{Seed: seed, Max: maxRetry}
}

// Delay returns Seed * attempt, or ok=false past the attempt budget.
func (s *Seeded) Delay(attempt int) (time.Duration, bool) {
	if attempt > s.Max {
		return 0, false
	}
	return s.Seed * time.Duration(attempt), true
}

// MaxRetry returns the attempt budget.
func (s *Seeded) MaxRetry() int { return s.Max }

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used by the engine:
// Fixed with a 5s unit and 3 attempts.
func DefaultStrategy() Strategy {
	return NewFixed(5*time.Second, 3)
}
