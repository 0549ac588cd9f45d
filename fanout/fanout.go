// Package fanout bounds the parallel per-entity work a run performs while
// iterating many independent entities (per-advertiser report fetches and the
// like). It combines a fixed max-degree-of-parallelism worker group with
// per-source rate limiting and concurrency caps.
package fanout

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-source fan-out behaviour.
type Config struct {
	// Source is the source identifier the limits apply to.
	Source string

	// MaxConcurrency limits how many units of work for this source may
	// run simultaneously across concurrent runs in this process. Zero
	// means no source-specific limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained units per second dispatched for
	// this source. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// sourceState tracks runtime state for a single source.
type sourceState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-source rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	sources map[string]*sourceState
}

// NewManager creates a Manager with the given source configurations.
// Sources not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{sources: make(map[string]*sourceState, len(configs))}
	for _, cfg := range configs {
		m.sources[cfg.Source] = newSourceState(cfg)
	}
	return m
}

func newSourceState(cfg Config) *sourceState {
	st := &sourceState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		st.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return st
}

// Acquire checks rate limits and concurrency for the given source. If the
// unit of work is allowed to proceed it increments the active counter and
// returns true. The caller MUST call Release when the unit completes.
func (m *Manager) Acquire(source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.sources[source]
	if st == nil {
		return true
	}
	if st.limiter != nil && !st.limiter.Allow() {
		return false
	}
	if st.config.MaxConcurrency > 0 && st.active >= st.config.MaxConcurrency {
		return false
	}
	st.active++
	return true
}

// Release decrements the active count for the source.
func (m *Manager) Release(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st := m.sources[source]; st != nil && st.active > 0 {
		st.active--
	}
}

// SetConfig dynamically updates (or creates) a source configuration,
// preserving the current active count.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.sources[cfg.Source]
	st := newSourceState(cfg)
	if existing != nil {
		st.active = existing.active
	}
	m.sources[cfg.Source] = st
}

// ActiveCount returns the current number of active units for a source.
func (m *Manager) ActiveCount(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.sources[source]; st != nil {
		return st.active
	}
	return 0
}

// ForEach runs fn over items with at most limit goroutines in flight.
// Cancellation is checked before each unit of work is dispatched; items not
// yet dispatched when ctx is cancelled are skipped and ctx.Err() joins the
// result. Individual failures do not stop the remaining items; every error
// is collected and returned joined, so the caller can count and aggregate.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	if limit <= 0 {
		limit = 1
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	sem := make(chan struct{}, limit)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := fn(ctx, item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(item)
	}

	wg.Wait()
	return errors.Join(errs...)
}
