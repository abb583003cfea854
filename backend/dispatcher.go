package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/backoff"
	"github.com/xraph/mapsection/cache"
	"github.com/xraph/mapsection/middleware"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// waiter is one request waiting on a task.
type waiter struct {
	req *section.Request
	fn  section.ResponseFunc
}

// task is one generation, shared by every identical request queued while
// it is pending.
type task struct {
	key     cache.Key
	waiters []waiter // guarded by Dispatcher.mu
	taken   bool     // guarded by Dispatcher.mu
}

// Dispatcher queues section requests and runs them on a worker pool.
// It is safe for concurrent use.
type Dispatcher struct {
	gen      Generator
	mws      []middleware.Middleware
	chain    middleware.Middleware
	pools    *pool.Shapes
	limiter  *rate.Limiter
	saver    Saver
	retries  int
	strategy backoff.Strategy
	workers  int
	capacity int
	logger   *slog.Logger

	queue chan *task

	mu        sync.Mutex
	pending   map[cache.Key]*task
	cancelled map[int]struct{}
	running   bool

	inFlight atomic.Int64
	nextJob  atomic.Int64
	stopped  atomic.Bool

	stopCh        chan struct{}
	group         *errgroup.Group
	cancelWork    context.CancelFunc
	persistCtx    context.Context
	cancelPersist context.CancelFunc
	persistWG     sync.WaitGroup
}

// New creates a Dispatcher around gen. Call Start before use.
func New(gen Generator, opts ...Option) *Dispatcher {
	cfg := mapsection.DefaultConfig()
	d := &Dispatcher{
		gen:       gen,
		workers:   cfg.Workers,
		capacity:  cfg.QueueCapacity,
		retries:   cfg.PersistRetries,
		strategy:  backoff.DefaultStrategy(),
		logger:    slog.Default(),
		pending:   make(map[cache.Key]*task),
		cancelled: make(map[int]struct{}),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pools == nil {
		d.pools = pool.NewShapes(cfg.PoolMaxFree)
	}
	d.chain = middleware.Chain(d.mws...)
	d.queue = make(chan *task, d.capacity)
	return d
}

// Start launches the workers. It returns immediately; calling it again is
// a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	if d.stopped.Load() {
		return mapsection.ErrBackendStopped
	}
	d.running = true

	workCtx, cancel := context.WithCancel(ctx)
	d.cancelWork = cancel
	d.persistCtx, d.cancelPersist = context.WithCancel(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(workCtx)
	for range d.workers {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	d.group = g

	d.logger.Info("generation backend started",
		slog.Int("workers", d.workers),
		slog.Int("queue_capacity", d.capacity),
	)
	return nil
}

// Stop stops the workers and waits for them. Queued work is answered with
// cancelled empty responses. If ctx ends first, running generations are
// cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running || d.stopped.Load() {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.stopped.Store(true)
	d.mu.Unlock()

	close(d.stopCh)

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		d.persistWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("generation backend shutdown timed out, cancelling running generations")
		d.cancelWork()
		d.cancelPersist()
		<-done
	}
	d.cancelWork()
	d.cancelPersist()
	d.drain()

	d.logger.Info("generation backend stopped")
	return nil
}

// AddWork queues req. Identical pending requests (same subdivision, block
// and iteration target) share one generation. AddWork blocks while the
// queue is full and returns ctx's error if ctx ends first. A request whose
// ctx is already done is never queued.
func (d *Dispatcher) AddWork(ctx context.Context, req *section.Request, fn section.ResponseFunc) error {
	if d.stopped.Load() {
		return mapsection.ErrBackendStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := cache.KeyFor(req)
	w := waiter{req: req, fn: fn}
	weight := int64(req.Weight())

	d.mu.Lock()
	if t, ok := d.pending[key]; ok && !t.taken {
		if err := ctx.Err(); err != nil {
			d.mu.Unlock()
			return err
		}
		t.waiters = append(t.waiters, w)
		d.inFlight.Add(weight)
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	t := &task{key: key, waiters: []waiter{w}}
	d.inFlight.Add(weight)

	select {
	case d.queue <- t:
	case <-ctx.Done():
		d.inFlight.Add(-weight)
		return ctx.Err()
	case <-d.stopCh:
		d.inFlight.Add(-weight)
		return mapsection.ErrBackendStopped
	}

	d.mu.Lock()
	if _, ok := d.pending[key]; !ok && !t.taken {
		d.pending[key] = t
	}
	d.mu.Unlock()

	if d.stopped.Load() {
		d.drain()
	}
	return nil
}

// CancelJob answers the job's queued requests with empty responses as
// workers reach them. Generations already running finish.
func (d *Dispatcher) CancelJob(jobNumber int) {
	d.mu.Lock()
	d.cancelled[jobNumber] = struct{}{}
	d.mu.Unlock()

	d.logger.Debug("job cancelled in backend", slog.Int("job_number", jobNumber))
}

// MarkJobAsComplete forgets the job's cancellation state.
func (d *Dispatcher) MarkJobAsComplete(jobNumber int) {
	d.mu.Lock()
	delete(d.cancelled, jobNumber)
	d.mu.Unlock()
}

// NextJobNumber allocates a job number. Numbers start at 1 and increase.
func (d *Dispatcher) NextJobNumber() int {
	return int(d.nextJob.Add(1))
}

// PendingCount returns the number of responses owed to callers.
func (d *Dispatcher) PendingCount() int {
	return int(d.inFlight.Load())
}

// ──────────────────────────────────────────────────
// Workers
// ──────────────────────────────────────────────────

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case t := <-d.queue:
			d.run(ctx, t)
		}
	}
}

// take detaches t from the pending set and returns its waiters, split
// into live and cancelled.
func (d *Dispatcher) take(t *task) (live, cancelled []waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t.taken = true
	if d.pending[t.key] == t {
		delete(d.pending, t.key)
	}
	for _, w := range t.waiters {
		if _, ok := d.cancelled[w.req.JobNumber]; ok || w.req.Cancelled() {
			cancelled = append(cancelled, w)
			continue
		}
		live = append(live, w)
	}
	return live, cancelled
}

func (d *Dispatcher) run(ctx context.Context, t *task) {
	live, cancelled := d.take(t)
	for _, w := range cancelled {
		d.answerEmpty(w, true)
	}
	if len(live) == 0 {
		return
	}

	genCtx, cancel := d.generationContext(ctx, live)
	defer cancel()

	first := live[0].req
	if d.limiter != nil {
		if err := d.limiter.Wait(genCtx); err != nil {
			d.logger.Debug("section generation not admitted by limiter",
				slog.String("request_id", first.ID()),
				slog.String("error", err.Error()),
			)
			for _, w := range live {
				d.answerEmpty(w, w.req.Cancelled())
			}
			return
		}
	}

	bs := first.BlockSize()
	buf := d.pools.Obtain(bs.Width, bs.Height)

	start := time.Now()
	err := d.chain(genCtx, first, func(ctx context.Context) error {
		return d.gen.Generate(ctx, first, buf.Value)
	})
	elapsed := time.Since(start)

	if err != nil {
		buf.Release()
		d.logger.Debug("section generation failed",
			slog.String("request_id", first.ID()),
			slog.Int("waiters", len(live)),
			slog.String("error", err.Error()),
		)
		for _, w := range live {
			d.answerEmpty(w, w.req.Cancelled())
		}
		return
	}

	resp := section.EmptyResponse(first, false)
	resp.Vectors = buf
	resp.GenerationDuration = elapsed

	d.persist(first, resp)
	d.deliver(live, resp)
}

// generationContext interrupts a generation with a single waiter when
// that waiter's job is cancelled. Shared generations run to completion.
func (d *Dispatcher) generationContext(ctx context.Context, live []waiter) (context.Context, context.CancelFunc) {
	if len(live) != 1 {
		return context.WithCancel(ctx)
	}
	genCtx, cancel := context.WithCancel(live[0].req.Job().Context())
	stop := context.AfterFunc(ctx, cancel)
	return genCtx, func() {
		stop()
		cancel()
	}
}

// deliver hands resp to every waiter and its mirror. All shares are taken
// before any callback runs, since a callback takes over its response's
// values.
func (d *Dispatcher) deliver(live []waiter, resp *section.Response) {
	type answer struct {
		w    waiter
		req  *section.Request
		resp *section.Response
	}

	answers := make([]answer, 0, 2*len(live))
	for i, w := range live {
		r := resp
		if i > 0 {
			r = resp.Share(w.req.RequestNumber)
		}
		answers = append(answers, answer{w, w.req, r})
		if w.req.Mirror != nil {
			answers = append(answers, answer{w, w.req.Mirror, resp.Share(w.req.Mirror.RequestNumber)})
		}
	}
	for _, a := range answers {
		d.respond(a.w, a.req, a.resp)
	}
}

func (d *Dispatcher) answerEmpty(w waiter, cancelled bool) {
	d.respond(w, w.req, section.EmptyResponse(w.req, cancelled))
	if w.req.Mirror != nil {
		d.respond(w, w.req.Mirror, section.EmptyResponse(w.req.Mirror, cancelled))
	}
}

func (d *Dispatcher) respond(w waiter, req *section.Request, resp *section.Response) {
	defer d.inFlight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("response callback panicked",
				slog.String("request_id", req.ID()),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	w.fn(req, resp)
}

// persist saves resp in the background, holding its own reference to the
// values until the save finishes.
func (d *Dispatcher) persist(req *section.Request, resp *section.Response) {
	if d.saver == nil || !cache.Savable(resp) {
		return
	}

	saved := *resp
	saved.Vectors.Retain()

	d.persistWG.Add(1)
	go func() {
		defer d.persistWG.Done()
		defer saved.Vectors.Release()

		err := backoff.Retry(d.persistCtx, d.strategy, d.retries+1, func(ctx context.Context) error {
			return d.saver.SaveResponse(ctx, req, &saved)
		})
		if err != nil {
			d.logger.Error("failed to persist section",
				slog.String("request_id", req.ID()),
				slog.String("key", cache.KeyFor(req).String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// drain answers everything left in the queue with cancelled empty
// responses.
func (d *Dispatcher) drain() {
	for {
		select {
		case t := <-d.queue:
			d.mu.Lock()
			t.taken = true
			if d.pending[t.key] == t {
				delete(d.pending, t.key)
			}
			waiters := t.waiters
			d.mu.Unlock()
			for _, w := range waiters {
				d.answerEmpty(w, true)
			}
		default:
			return
		}
	}
}
