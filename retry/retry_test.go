package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adwire/conveyor"
	"github.com/adwire/conveyor/backoff"
	"github.com/adwire/conveyor/retry"
)

var errBoom = errors.New("boom")

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Millisecond, 3), time.Minute)

	calls := 0
	got, err := retry.Do(context.Background(), e, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Millisecond, 3), time.Minute)

	calls := 0
	got, err := retry.Do(context.Background(), e, func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errBoom
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	// Two failures means exactly two delays and three calls.
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_ExhaustsAttemptBudget(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Millisecond, 2), time.Minute)

	calls := 0
	_, err := retry.Do(context.Background(), e, func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if !errors.Is(err, conveyor.ErrRetriesExhausted) {
		t.Errorf("error = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, should wrap the last operation failure", err)
	}
	// Initial attempt + 2 retries.
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_CancelledBeforeFirstAttempt(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Second, 3), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	start := time.Now()
	_, err := retry.Do(ctx, e, func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if err == nil {
		t.Fatal("expected error for pre-cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("op called %d times, want 0", calls)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Do slept %v before propagating cancellation", elapsed)
	}
}

func TestDo_CancelledMidRetry(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Millisecond, 5), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := retry.Do(ctx, e, func(context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, errBoom
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	// Both the cancellation and the last failure must survive in the
	// chain: the engine tells them apart to decide Pending versus Error.
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in the chain", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, should wrap the last operation failure", err)
	}
	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Minute, 5), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(ctx, e, func(context.Context) (int, error) {
			calls++
			return 0, errBoom
		})
		done <- err
	}()

	// Let the first attempt fail and the backoff sleep begin.
	time.Sleep(20 * time.Millisecond)
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(time.Second):
		t.Fatal("Do kept sleeping after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in the chain", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, should wrap the last operation failure", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_WallClockBudgetExceeded(t *testing.T) {
	// A 1ns budget is exhausted by the time the first failure is inspected,
	// so Do stops without consuming a backoff attempt.
	e := retry.NewExecutor(backoff.NewFixed(time.Second, 5), time.Nanosecond)

	calls := 0
	_, err := retry.Do(context.Background(), e, func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if err == nil {
		t.Fatal("expected error after budget exhaustion")
	}
	if !errors.Is(err, conveyor.ErrBudgetExceeded) {
		t.Errorf("error = %v, want ErrBudgetExceeded", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, should wrap the last operation failure", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_NegativeBudgetFailsFast(t *testing.T) {
	// A run that is already over budget hands out an executor with a
	// negative remainder. It must propagate the first failure without
	// retrying or sleeping.
	e := retry.NewExecutor(backoff.NewFixed(time.Second, 5), -time.Second)

	calls := 0
	start := time.Now()
	_, err := retry.Do(context.Background(), e, func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if !errors.Is(err, conveyor.ErrBudgetExceeded) {
		t.Errorf("error = %v, want ErrBudgetExceeded", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Do slept %v with an exhausted budget", elapsed)
	}
}

func TestRun_WrapsErrorOnlyOperations(t *testing.T) {
	e := retry.NewExecutor(backoff.NewFixed(time.Millisecond, 3), time.Minute)

	calls := 0
	err := retry.Run(context.Background(), e, func(context.Context) error {
		calls++
		if calls == 1 {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestElapsed_Advances(t *testing.T) {
	e := retry.NewExecutor(backoff.DefaultStrategy(), 0)
	time.Sleep(5 * time.Millisecond)
	if e.Elapsed() < 5*time.Millisecond {
		t.Errorf("Elapsed() = %v, want at least 5ms", e.Elapsed())
	}
}
