package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/middleware"
	"github.com/adwire/conveyor/pipeline"
	"github.com/adwire/conveyor/run"
)

func testRun() *run.Run {
	return &run.Run{
		ID:            id.NewRunID(),
		Source:        "acmeads",
		Step:          pipeline.Step{Name: "Import", Order: 1},
		CorrelationID: "c0ffee00",
		StartedAt:     time.Now(),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *run.Run, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *run.Run, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	if err := chain(context.Background(), testRun(), handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false

	err := chain(context.Background(), testRun(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *run.Run, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	err := chain(context.Background(), testRun(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestRecover_ConvertsPanicToError(t *testing.T) {
	mw := middleware.Recover(quietLogger())

	err := mw(context.Background(), testRun(), func(_ context.Context) error {
		panic("kaboom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking handler")
	}
}

func TestRecover_PassesThroughSuccess(t *testing.T) {
	mw := middleware.Recover(quietLogger())

	if err := mw(context.Background(), testRun(), func(_ context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeadline_AnchorsToRunStart(t *testing.T) {
	mw := middleware.Deadline(quietLogger())

	r := testRun()
	r.StartedAt = time.Now().Add(-time.Hour)
	r.MaxRuntime = 30 * time.Minute

	err := mw(context.Background(), r, func(ctx context.Context) error {
		// Budget already exhausted: the context must arrive expired.
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestDeadline_ZeroBudgetPassesThrough(t *testing.T) {
	mw := middleware.Deadline(quietLogger())

	err := mw(context.Background(), testRun(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("no deadline expected for a run without MaxRuntime")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogging_PassesThroughResult(t *testing.T) {
	mw := middleware.Logging(quietLogger())
	want := errors.New("boom")

	if err := mw(context.Background(), testRun(), func(_ context.Context) error {
		return want
	}); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}

	if err := mw(context.Background(), testRun(), func(_ context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTracing_NoopProviderPassesThrough(t *testing.T) {
	mw := middleware.Tracing()

	called := false
	if err := mw(context.Background(), testRun(), func(_ context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called through tracing middleware")
	}
}

func TestMetrics_NoopProviderPassesThrough(t *testing.T) {
	mw := middleware.Metrics()

	want := errors.New("boom")
	if err := mw(context.Background(), testRun(), func(_ context.Context) error {
		return want
	}); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}
