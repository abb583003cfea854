package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xraph/mapsection/middleware"
	"github.com/xraph/mapsection/section"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRequest() *section.Request {
	j := section.NewJob(context.Background(), 4)
	req := section.NewRequest(j, 9)
	req.Subdivision = section.NewSubdivision(
		section.RPoint{X: section.NewRValue(-2, 0), Y: section.NewRValue(0, 0)},
		section.RSize{Width: section.NewRValue(1, -8), Height: section.NewRValue(1, -8)},
		section.SizeInt{Width: 16, Height: 16},
	)
	req.BlockOffset = section.VectorLong{X: 3, Y: -2}
	req.Settings = section.DefaultCalcSettings()
	return req
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string
	record := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *section.Request, next middleware.Handler) error {
			order = append(order, name+"-before")
			err := next(ctx)
			order = append(order, name+"-after")
			return err
		}
	}

	chain := middleware.Chain(record("mw1"), record("mw2"))
	err := chain(context.Background(), newTestRequest(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChain_Empty(t *testing.T) {
	called := false
	err := middleware.Chain()(context.Background(), newTestRequest(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("empty chain: err=%v called=%v", err, called)
	}
}

func TestChain_PropagatesError(t *testing.T) {
	want := errors.New("generator error")
	chain := middleware.Chain(middleware.Logging(testLogger()))

	err := chain(context.Background(), newTestRequest(), func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(testLogger())

	err := mw(context.Background(), newTestRequest(), func(context.Context) error {
		panic("kernel overflow")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); !strings.Contains(got, "4/9") || !strings.Contains(got, "kernel overflow") {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(testLogger())
	called := false
	if err := mw(context.Background(), newTestRequest(), func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	mw := middleware.Timeout(10 * time.Millisecond)

	err := mw(context.Background(), newTestRequest(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline")
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestTimeout_ZeroDisables(t *testing.T) {
	mw := middleware.Timeout(0)
	_ = mw(context.Background(), newTestRequest(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline")
		}
		return nil
	})
}
