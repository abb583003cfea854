package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/mapsection/ext"
	"github.com/xraph/mapsection/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	mu    sync.Mutex
	calls []string
}

func (e *allHooksExt) record(name string) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnRequestAdded(_ context.Context, _ job.RequestAdded) error {
	e.record("OnRequestAdded")
	return nil
}

func (e *allHooksExt) OnSectionLoaded(_ context.Context, _ job.SectionLoaded) error {
	e.record("OnSectionLoaded")
	return nil
}

func (e *allHooksExt) OnJobCompleted(_ context.Context, _ int, _ time.Duration) error {
	e.record("OnJobCompleted")
	return nil
}

func (e *allHooksExt) OnJobStopped(_ context.Context, _ int) error {
	e.record("OnJobStopped")
	return nil
}

func (e *allHooksExt) OnJobReaped(_ context.Context, _ int, _ time.Duration) error {
	e.record("OnJobReaped")
	return nil
}

func (e *allHooksExt) OnJobStuck(_ context.Context, _ int, _ time.Duration) error {
	e.record("OnJobStuck")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.record("OnShutdown")
	return nil
}

// sectionOnlyExt only implements SectionLoaded.
type sectionOnlyExt struct {
	calls []job.SectionLoaded
}

func (e *sectionOnlyExt) Name() string { return "section-only" }

func (e *sectionOnlyExt) OnSectionLoaded(_ context.Context, s job.SectionLoaded) error {
	e.calls = append(e.calls, s)
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnRequestAdded(_ context.Context, _ job.RequestAdded) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	so := &sectionOnlyExt{}
	r.Register(all)
	r.Register(so)

	ctx := context.Background()

	r.EmitSectionLoaded(ctx, job.SectionLoaded{JobNumber: 3, RequestNumber: 7, IsLast: true})
	if len(all.calls) != 1 || all.calls[0] != "OnSectionLoaded" {
		t.Fatalf("all: expected [OnSectionLoaded], got %v", all.calls)
	}
	if len(so.calls) != 1 || so.calls[0].RequestNumber != 7 || !so.calls[0].IsLast {
		t.Fatalf("section-only: unexpected calls %+v", so.calls)
	}

	r.EmitRequestAdded(ctx, job.RequestAdded{JobNumber: 3})
	if len(all.calls) != 2 || all.calls[1] != "OnRequestAdded" {
		t.Fatalf("all: expected OnRequestAdded as 2nd, got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("section-only: should still have 1 call, got %d", len(so.calls))
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitRequestAdded(ctx, job.RequestAdded{JobNumber: 1, TotalSections: 36, Satisfied: 10})
	r.EmitSectionLoaded(ctx, job.SectionLoaded{JobNumber: 1})
	r.EmitJobCompleted(ctx, 1, time.Second)
	r.EmitJobStopped(ctx, 1)
	r.EmitJobReaped(ctx, 1, time.Minute)
	r.EmitJobStuck(ctx, 2, 4*time.Minute)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnRequestAdded", "OnSectionLoaded", "OnJobCompleted",
		"OnJobStopped", "OnJobReaped", "OnJobStuck", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsDoNotPropagate(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitRequestAdded(ctx, job.RequestAdded{JobNumber: 1})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("later extensions should still be notified, got %v", all.calls)
	}
}

func TestRegistry_ConcurrentSectionLoaded(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.EmitSectionLoaded(context.Background(), job.SectionLoaded{JobNumber: 1, RequestNumber: i})
		}()
	}
	wg.Wait()

	if len(all.calls) != 50 {
		t.Errorf("calls = %d, want 50", len(all.calls))
	}
}
