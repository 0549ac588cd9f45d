package fanout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adwire/conveyor/fanout"
)

func TestManager_UnknownSourceHasNoLimits(t *testing.T) {
	m := fanout.NewManager()
	for range 100 {
		if !m.Acquire("anything") {
			t.Fatal("unlimited source should always acquire")
		}
	}
}

func TestManager_MaxConcurrency(t *testing.T) {
	m := fanout.NewManager(fanout.Config{Source: "acmeads", MaxConcurrency: 2})

	if !m.Acquire("acmeads") || !m.Acquire("acmeads") {
		t.Fatal("first two acquisitions should succeed")
	}
	if m.Acquire("acmeads") {
		t.Error("third acquisition should be rejected at MaxConcurrency=2")
	}

	m.Release("acmeads")
	if !m.Acquire("acmeads") {
		t.Error("acquisition after release should succeed")
	}
	if got := m.ActiveCount("acmeads"); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
}

func TestManager_RateLimit(t *testing.T) {
	m := fanout.NewManager(fanout.Config{Source: "acmeads", RateLimit: 1, RateBurst: 1})

	if !m.Acquire("acmeads") {
		t.Fatal("first acquisition should consume the burst token")
	}
	if m.Acquire("acmeads") {
		t.Error("second immediate acquisition should be rate limited")
	}
}

func TestManager_SetConfigPreservesActive(t *testing.T) {
	m := fanout.NewManager(fanout.Config{Source: "acmeads", MaxConcurrency: 1})
	if !m.Acquire("acmeads") {
		t.Fatal("acquire failed")
	}

	m.SetConfig(fanout.Config{Source: "acmeads", MaxConcurrency: 2})
	if got := m.ActiveCount("acmeads"); got != 1 {
		t.Errorf("ActiveCount = %d after reconfigure, want 1", got)
	}
	if !m.Acquire("acmeads") {
		t.Error("raised limit should admit another unit")
	}
}

func TestForEach_RunsAllItems(t *testing.T) {
	var sum atomic.Int64
	err := fanout.ForEach(context.Background(), 3, []int{1, 2, 3, 4, 5}, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if sum.Load() != 15 {
		t.Errorf("sum = %d, want 15", sum.Load())
	}
}

func TestForEach_BoundsParallelism(t *testing.T) {
	const limit = 2
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	err := fanout.ForEach(context.Background(), limit, make([]int, 20), func(context.Context, int) error {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if maxSeen > limit {
		t.Errorf("observed %d concurrent units, limit %d", maxSeen, limit)
	}
}

func TestForEach_CollectsFailuresWithoutAborting(t *testing.T) {
	errBad := errors.New("bad item")
	var calls atomic.Int64

	err := fanout.ForEach(context.Background(), 2, []int{1, 2, 3, 4}, func(_ context.Context, n int) error {
		calls.Add(1)
		if n%2 == 0 {
			return errBad
		}
		return nil
	})
	if calls.Load() != 4 {
		t.Errorf("ran %d items, want all 4 despite failures", calls.Load())
	}
	if !errors.Is(err, errBad) {
		t.Errorf("joined error %v should include item failures", err)
	}
}

func TestForEach_StopsDispatchingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int64
	err := fanout.ForEach(ctx, 1, []int{1, 2, 3, 4, 5}, func(context.Context, int) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled joined in", err)
	}
	if calls.Load() > 3 {
		t.Errorf("dispatched %d items after cancellation", calls.Load())
	}
}

func TestForEach_ZeroLimitStillRuns(t *testing.T) {
	var calls atomic.Int64
	if err := fanout.ForEach(context.Background(), 0, []int{1, 2}, func(context.Context, int) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("ran %d items, want 2", calls.Load())
	}
}
