package backend_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/backend"
	"github.com/xraph/mapsection/backoff"
	"github.com/xraph/mapsection/cache/memory"
	"github.com/xraph/mapsection/middleware"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testSubdivision = section.NewSubdivision(
	section.RPoint{X: section.NewRValue(-2, 0), Y: section.NewRValue(1, 0)},
	section.RSize{Width: section.NewRValue(1, -8), Height: section.NewRValue(1, -8)},
	section.SizeInt{Width: 4, Height: 2},
)

func newRequest(j *section.Job, n int, blockX int64) *section.Request {
	req := section.NewRequest(j, n)
	req.Subdivision = testSubdivision
	req.BlockOffset = section.VectorLong{X: blockX}
	req.Settings = section.DefaultCalcSettings()
	return req
}

// fillGenerator writes the block's X offset into every count.
func fillGenerator(calls *atomic.Int32) backend.Generator {
	return backend.GeneratorFunc(func(_ context.Context, req *section.Request, dst *pool.Vectors) error {
		calls.Add(1)
		for i := range dst.Counts {
			dst.Counts[i] = uint32(req.BlockOffset.X)
		}
		return nil
	})
}

// gatedGenerator blocks requests for block gateX until the gate opens.
type gatedGenerator struct {
	gateX   int64
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func newGatedGenerator(gateX int64) *gatedGenerator {
	return &gatedGenerator{gateX: gateX, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
}

func (g *gatedGenerator) Generate(ctx context.Context, req *section.Request, dst *pool.Vectors) error {
	g.calls.Add(1)
	if req.BlockOffset.X == g.gateX {
		g.entered <- struct{}{}
		select {
		case <-g.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := range dst.Counts {
		dst.Counts[i] = uint32(req.BlockOffset.X)
	}
	return nil
}

type answers struct {
	mu    sync.Mutex
	resps map[string]*section.Response
	order []string
	wg    sync.WaitGroup
}

func newAnswers(expected int) *answers {
	a := &answers{resps: make(map[string]*section.Response)}
	a.wg.Add(expected)
	return a
}

func (a *answers) fn(req *section.Request, resp *section.Response) {
	a.mu.Lock()
	a.resps[req.ID()] = resp
	a.order = append(a.order, req.ID())
	a.mu.Unlock()
	a.wg.Done()
}

func (a *answers) wait(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for responses")
	}
}

func (a *answers) get(id string) *section.Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resps[id]
}

func startDispatcher(t *testing.T, gen backend.Generator, opts ...backend.Option) *backend.Dispatcher {
	t.Helper()
	opts = append([]backend.Option{backend.WithLogger(testLogger())}, opts...)
	d := backend.New(gen, opts...)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func TestDispatcher_GeneratesEveryRequest(t *testing.T) {
	var calls atomic.Int32
	d := startDispatcher(t, fillGenerator(&calls), backend.WithWorkers(3))

	j := section.NewJob(context.Background(), d.NextJobNumber())
	a := newAnswers(5)
	for i := range 5 {
		if err := d.AddWork(context.Background(), newRequest(j, i, int64(i+1)), a.fn); err != nil {
			t.Fatalf("AddWork: %v", err)
		}
	}
	a.wait(t)

	for i := range 5 {
		resp := a.get(newRequest(j, i, 0).ID())
		if resp.IsEmpty() {
			t.Fatalf("request %d: empty response", i)
		}
		if got := resp.Vectors.Value.Counts[0]; got != uint32(i+1) {
			t.Errorf("request %d: count = %d, want %d", i, got, i+1)
		}
		if resp.GenerationDuration <= 0 {
			t.Errorf("request %d: generation duration not set", i)
		}
	}
	if calls.Load() != 5 {
		t.Errorf("generator calls = %d, want 5", calls.Load())
	}
	if d.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", d.PendingCount())
	}
}

func TestDispatcher_CoalescesIdenticalRequests(t *testing.T) {
	g := newGatedGenerator(99)
	d := startDispatcher(t, g, backend.WithWorkers(1))

	blocker := section.NewJob(context.Background(), 1)
	a := newAnswers(3)
	if err := d.AddWork(context.Background(), newRequest(blocker, 0, 99), a.fn); err != nil {
		t.Fatal(err)
	}
	<-g.entered

	j2 := section.NewJob(context.Background(), 2)
	j3 := section.NewJob(context.Background(), 3)
	if err := d.AddWork(context.Background(), newRequest(j2, 0, 7), a.fn); err != nil {
		t.Fatal(err)
	}
	if err := d.AddWork(context.Background(), newRequest(j3, 4, 7), a.fn); err != nil {
		t.Fatal(err)
	}
	if d.PendingCount() != 3 {
		t.Errorf("PendingCount = %d, want 3", d.PendingCount())
	}

	close(g.gate)
	a.wait(t)

	if g.calls.Load() != 2 {
		t.Errorf("generator calls = %d, want 2 (blocker + one shared)", g.calls.Load())
	}
	r2, r3 := a.get("2/0"), a.get("3/4")
	if r2.IsEmpty() || r3.IsEmpty() {
		t.Fatal("coalesced requests should both receive values")
	}
	if r3.RequestNumber != 4 {
		t.Errorf("shared response request number = %d, want 4", r3.RequestNumber)
	}
	if r2.Vectors != r3.Vectors || r2.Vectors.RefCount() != 2 {
		t.Errorf("shared values: same=%v refs=%d", r2.Vectors == r3.Vectors, r2.Vectors.RefCount())
	}
}

func TestDispatcher_CancelledJobAnsweredEmpty(t *testing.T) {
	g := newGatedGenerator(99)
	d := startDispatcher(t, g, backend.WithWorkers(1))

	a := newAnswers(2)
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(context.Background(), 1), 0, 99), a.fn); err != nil {
		t.Fatal(err)
	}
	<-g.entered

	j := section.NewJob(context.Background(), 2)
	if err := d.AddWork(context.Background(), newRequest(j, 0, 5), a.fn); err != nil {
		t.Fatal(err)
	}
	d.CancelJob(2)
	close(g.gate)
	a.wait(t)

	resp := a.get("2/0")
	if !resp.IsEmpty() || !resp.Cancelled {
		t.Errorf("cancelled job response: empty=%v cancelled=%v", resp.IsEmpty(), resp.Cancelled)
	}
	if g.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", g.calls.Load())
	}

	d.MarkJobAsComplete(2)
}

func TestDispatcher_AddWorkRejectsCancelledJob(t *testing.T) {
	g := newGatedGenerator(99)
	d := startDispatcher(t, g, backend.WithWorkers(1), backend.WithQueueCapacity(256))

	a := newAnswers(2)
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(context.Background(), 1), 0, 99), a.fn); err != nil {
		t.Fatal(err)
	}
	<-g.entered
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(context.Background(), 2), 0, 7), a.fn); err != nil {
		t.Fatal(err)
	}

	stopped := section.NewJob(context.Background(), 3)
	stopped.Cancel()
	var answered atomic.Int32
	for i := range 200 {
		// Even requests match the pending block 7 generation.
		blockX := int64(7)
		if i%2 == 1 {
			blockX = int64(100 + i)
		}
		err := d.AddWork(stopped.Context(), newRequest(stopped, i, blockX), func(*section.Request, *section.Response) {
			answered.Add(1)
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("request %d: AddWork = %v, want context.Canceled", i, err)
		}
	}
	if d.PendingCount() != 2 {
		t.Errorf("PendingCount = %d, want 2", d.PendingCount())
	}

	close(g.gate)
	a.wait(t)
	if answered.Load() != 0 {
		t.Errorf("cancelled job answered %d times, want 0", answered.Load())
	}
	if g.calls.Load() != 2 {
		t.Errorf("generator calls = %d, want 2", g.calls.Load())
	}
}

func TestDispatcher_MirrorReceivesSharedValues(t *testing.T) {
	var calls atomic.Int32
	d := startDispatcher(t, fillGenerator(&calls), backend.WithWorkers(1))

	j := section.NewJob(context.Background(), 1)
	primary := newRequest(j, 0, 3)
	mirror := newRequest(j, 1, 3)
	mirror.IsInverted = true
	primary.Mirror = mirror

	a := newAnswers(2)
	if err := d.AddWork(context.Background(), primary, a.fn); err != nil {
		t.Fatal(err)
	}
	a.wait(t)

	a.mu.Lock()
	order := append([]string(nil), a.order...)
	a.mu.Unlock()
	if len(order) != 2 || order[0] != "1/0" || order[1] != "1/1" {
		t.Errorf("delivery order = %v, want [1/0 1/1]", order)
	}

	p, m := a.get("1/0"), a.get("1/1")
	if p.Vectors != m.Vectors || p.Vectors.RefCount() != 2 {
		t.Errorf("mirror should share the primary's values")
	}
	if m.RequestNumber != 1 {
		t.Errorf("mirror request number = %d, want 1", m.RequestNumber)
	}
	if calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", calls.Load())
	}
}

func TestDispatcher_GeneratorErrorYieldsEmptyResponse(t *testing.T) {
	gen := backend.GeneratorFunc(func(context.Context, *section.Request, *pool.Vectors) error {
		panic("kernel fault")
	})
	d := startDispatcher(t, gen,
		backend.WithWorkers(1),
		backend.WithMiddleware(middleware.Recover(testLogger())),
	)

	a := newAnswers(1)
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(context.Background(), 1), 0, 1), a.fn); err != nil {
		t.Fatal(err)
	}
	a.wait(t)

	resp := a.get("1/0")
	if !resp.IsEmpty() || resp.Cancelled {
		t.Errorf("failed generation: empty=%v cancelled=%v, want empty and not cancelled", resp.IsEmpty(), resp.Cancelled)
	}
}

func TestDispatcher_RateLimitRefusalIsNotCancellation(t *testing.T) {
	var calls atomic.Int32
	d := startDispatcher(t, fillGenerator(&calls),
		backend.WithWorkers(1),
		backend.WithRateLimit(0.001, 1),
	)

	a := newAnswers(2)
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(context.Background(), 1), 0, 1), a.fn); err != nil {
		t.Fatal(err)
	}

	// The next token is far past this job's deadline, so the limiter
	// refuses at once.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(ctx, 2), 0, 2), a.fn); err != nil {
		t.Fatal(err)
	}
	a.wait(t)

	if resp := a.get("1/0"); resp.IsEmpty() {
		t.Error("first request should have been generated")
	}
	resp := a.get("2/0")
	if !resp.IsEmpty() || resp.Cancelled {
		t.Errorf("refused generation: empty=%v cancelled=%v, want empty and not cancelled", resp.IsEmpty(), resp.Cancelled)
	}
	if calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", calls.Load())
	}
}

func TestDispatcher_PersistsGeneratedSections(t *testing.T) {
	var calls atomic.Int32
	store := memory.New()
	d := startDispatcher(t, fillGenerator(&calls), backend.WithPersistence(store, 0))

	a := newAnswers(2)
	j := section.NewJob(context.Background(), 1)
	for i := range 2 {
		if err := d.AddWork(context.Background(), newRequest(j, i, int64(10+i)), a.fn); err != nil {
			t.Fatal(err)
		}
	}
	a.wait(t)

	deadline := time.Now().Add(5 * time.Second)
	for store.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if store.Len() != 2 {
		t.Fatalf("stored sections = %d, want 2", store.Len())
	}

	results, err := store.FetchResponses(context.Background(), []*section.Request{newRequest(j, 5, 11)})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Hit() || results[0].Response.Vectors.Value.Counts[0] != 11 {
		t.Error("persisted section not readable with its values")
	}
}

type flakySaver struct {
	failures int
	calls    atomic.Int32
	saved    chan struct{}
}

func (s *flakySaver) SaveResponse(context.Context, *section.Request, *section.Response) error {
	if int(s.calls.Add(1)) <= s.failures {
		return errors.New("store unavailable")
	}
	close(s.saved)
	return nil
}

func TestDispatcher_PersistenceRetries(t *testing.T) {
	var calls atomic.Int32
	saver := &flakySaver{failures: 2, saved: make(chan struct{})}
	d := startDispatcher(t, fillGenerator(&calls),
		backend.WithPersistence(saver, 3),
		backend.WithRetryStrategy(backoff.NewConstant(time.Millisecond)),
	)

	a := newAnswers(1)
	if err := d.AddWork(context.Background(), newRequest(section.NewJob(context.Background(), 1), 0, 1), a.fn); err != nil {
		t.Fatal(err)
	}
	a.wait(t)

	select {
	case <-saver.saved:
	case <-time.After(5 * time.Second):
		t.Fatal("section never saved")
	}
	if saver.calls.Load() != 3 {
		t.Errorf("save attempts = %d, want 3", saver.calls.Load())
	}
}

func TestDispatcher_AddWorkBlocksWhenFull(t *testing.T) {
	d := backend.New(backend.GeneratorFunc(func(context.Context, *section.Request, *pool.Vectors) error {
		return nil
	}), backend.WithQueueCapacity(1), backend.WithLogger(testLogger()))

	j := section.NewJob(context.Background(), 1)
	if err := d.AddWork(context.Background(), newRequest(j, 0, 1), func(*section.Request, *section.Response) {}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.AddWork(ctx, newRequest(j, 1, 2), func(*section.Request, *section.Response) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AddWork on full queue = %v, want DeadlineExceeded", err)
	}
	if d.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", d.PendingCount())
	}
}

func TestDispatcher_StopAnswersQueuedWork(t *testing.T) {
	g := newGatedGenerator(99)
	d := backend.New(g, backend.WithWorkers(1), backend.WithLogger(testLogger()))
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	j := section.NewJob(context.Background(), 1)
	a := newAnswers(3)
	if err := d.AddWork(context.Background(), newRequest(j, 0, 99), a.fn); err != nil {
		t.Fatal(err)
	}
	<-g.entered
	for i := 1; i <= 2; i++ {
		if err := d.AddWork(context.Background(), newRequest(j, i, int64(i)), a.fn); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	a.wait(t)

	for i := range 3 {
		resp := a.get(newRequest(j, i, 0).ID())
		if !resp.IsEmpty() {
			t.Errorf("request %d: expected an empty response after shutdown", i)
		}
	}
	if d.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", d.PendingCount())
	}

	err := d.AddWork(context.Background(), newRequest(j, 3, 3), a.fn)
	if !errors.Is(err, mapsection.ErrBackendStopped) {
		t.Errorf("AddWork after Stop = %v, want ErrBackendStopped", err)
	}
}

func TestDispatcher_NextJobNumberIncreases(t *testing.T) {
	d := backend.New(nil)
	prev := 0
	for range 5 {
		n := d.NextJobNumber()
		if n <= prev {
			t.Fatalf("NextJobNumber = %d after %d", n, prev)
		}
		prev = n
	}
}
