package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/cache"
	"github.com/xraph/mapsection/ext"
	"github.com/xraph/mapsection/job"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/progress"
	"github.com/xraph/mapsection/section"
)

// Dispatcher is the generation backend the engine drives.
type Dispatcher interface {
	job.Dispatcher

	// NextJobNumber allocates a unique job number.
	NextJobNumber() int

	// MarkJobAsComplete releases the backend's state for a finished job.
	MarkJobAsComplete(jobNumber int)
}

// stopper is implemented by dispatchers the engine shuts down on Close.
type stopper interface {
	Stop(ctx context.Context) error
}

// Engine is the job registry. It consults the result cache, hands misses
// to a loader, tracks running jobs and reaps them once they finish.
type Engine struct {
	cache      cache.Store
	dispatcher Dispatcher
	config     mapsection.Config
	logger     *slog.Logger
	extensions *ext.Registry
	broker     *progress.Broker
	builder    *section.Builder

	pendingExts []ext.Extension
	pools       *pool.Shapes

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	records map[int]*job.Record

	closed     atomic.Bool
	reaperDone chan struct{}
}

// New creates an Engine and starts its reaper.
func New(store cache.Store, dispatcher Dispatcher, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, mapsection.ErrNoCache
	}
	if dispatcher == nil {
		return nil, mapsection.ErrNoBackend
	}

	eng := &Engine{
		cache:      store,
		dispatcher: dispatcher,
		config:     mapsection.DefaultConfig(),
		logger:     slog.Default(),
		records:    make(map[int]*job.Record),
		reaperDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.config.ReapInterval <= 0 {
		return nil, fmt.Errorf("mapsection: reap interval must be positive, got %s", eng.config.ReapInterval)
	}
	if eng.pools == nil {
		eng.pools = pool.NewShapes(eng.config.PoolMaxFree)
	}
	eng.builder = section.NewBuilder(eng.pools)

	if eng.broker == nil {
		eng.broker = progress.NewBroker(eng.logger)
	}
	eng.extensions = ext.NewRegistry(eng.logger)
	eng.extensions.Register(eng.broker)
	for _, e := range eng.pendingExts {
		eng.extensions.Register(e)
	}
	eng.pendingExts = nil

	eng.ctx, eng.cancel = context.WithCancel(context.Background())
	go eng.reapLoop()

	return eng, nil
}

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Broker returns the progress broker.
func (e *Engine) Broker() *progress.Broker { return e.broker }

// Config returns the engine's configuration.
func (e *Engine) Config() mapsection.Config { return e.config }

// ──────────────────────────────────────────────────
// Submission
// ──────────────────────────────────────────────────

// Push loads the viewport. Sections already in the cache are returned
// immediately; the rest are generated in the background and delivered to
// cb, the last one flagged IsLastSection. Push also returns the job
// number, which identifies the load in the other registry operations.
func (e *Engine) Push(ctx context.Context, vp section.Viewport, settings section.CalcSettings, cb section.Callback) ([]*section.Section, int, error) {
	if e.closed.Load() {
		return nil, 0, mapsection.ErrEngineClosed
	}
	if err := vp.Validate(); err != nil {
		return nil, 0, err
	}

	j := e.NewJob()
	reqs, err := section.Partition(j, vp, settings)
	if err != nil {
		j.Cancel()
		return nil, 0, err
	}

	secs, err := e.PushRequests(ctx, j, reqs, cb)
	if err != nil {
		return nil, 0, err
	}
	return secs, j.Number(), nil
}

// NewJob allocates a job number from the backend and returns a job bound
// to the engine's lifetime. Use it to build requests for PushRequests.
func (e *Engine) NewJob() *section.Job {
	return section.NewJob(e.ctx, e.dispatcher.NextJobNumber())
}

// PushRequests is Push for requests the caller has already partitioned.
// Every request must belong to j. Mirrors travel with their primaries.
// PushRequests takes over j: it is released once the job needs nothing
// more from the backend, or when the job is reaped.
func (e *Engine) PushRequests(ctx context.Context, j *section.Job, reqs []*section.Request, cb section.Callback) ([]*section.Section, error) {
	if e.closed.Load() {
		j.Cancel()
		return nil, mapsection.ErrEngineClosed
	}

	results, err := e.cache.FetchResponses(ctx, reqs)
	if err != nil {
		e.logger.Warn("cache lookup failed, generating every section",
			slog.Int("job_number", j.Number()),
			slog.String("error", err.Error()),
		)
		results = make([]cache.Result, len(reqs))
		for i, req := range reqs {
			results[i] = cache.Result{Request: req}
		}
	}

	var (
		hits   []*section.Section
		misses []*section.Request
		total  int
	)
	for _, res := range results {
		req := res.Request
		total += req.Weight()
		if !res.Hit() {
			misses = append(misses, req)
			continue
		}
		hits = append(hits, e.fromCache(req, res.Response)...)
	}

	label := ""
	if len(reqs) > 0 {
		label = "block " + reqs[0].JobBlockOffset.String()
	}
	e.extensions.EmitRequestAdded(ctx, job.RequestAdded{
		JobNumber:     j.Number(),
		Label:         label,
		TotalSections: total,
		Satisfied:     len(hits),
	})

	e.logger.Debug("job added",
		slog.Int("job_number", j.Number()),
		slog.Int("total_sections", total),
		slog.Int("cached_sections", len(hits)),
	)

	for _, sec := range hits {
		e.extensions.EmitSectionLoaded(ctx, job.SectionLoaded{
			JobNumber:     sec.JobNumber,
			RequestNumber: sec.RequestNumber,
			FromCache:     true,
		})
	}

	if len(misses) == 0 {
		j.Cancel()
		return hits, nil
	}

	loader := job.NewLoader(j, e.dispatcher, cb,
		job.WithEmitter(e.extensions),
		job.WithBuilder(e.builder),
		job.WithLogger(e.logger),
	)

	e.mu.Lock()
	rec, err := job.NewRecord(e.ctx, loader, misses)
	if err == nil {
		e.records[j.Number()] = rec
	}
	e.mu.Unlock()

	if err != nil {
		j.Cancel()
		for _, s := range hits {
			s.Release()
		}
		return nil, fmt.Errorf("start job %d: %w", j.Number(), err)
	}
	return hits, nil
}

// fromCache builds the sections for a cache hit: the request's own and,
// when it has one, its mirror's from the same values.
func (e *Engine) fromCache(req *section.Request, resp *section.Response) []*section.Section {
	req.MarkFoundInCache()
	if req.Mirror == nil {
		return []*section.Section{e.builder.Build(req, resp, true)}
	}

	req.Mirror.MarkFoundInCache()
	mirror := resp.Share(req.Mirror.RequestNumber)
	return []*section.Section{
		e.builder.Build(req, resp, true),
		e.builder.Build(req.Mirror, mirror, true),
	}
}

// ──────────────────────────────────────────────────
// Control
// ──────────────────────────────────────────────────

// StopJob stops the job's loader. Unknown or finished jobs are ignored.
func (e *Engine) StopJob(jobNumber int) {
	e.StopJobs(jobNumber)
}

// StopJobs stops each listed job.
func (e *Engine) StopJobs(jobNumbers ...int) {
	var stopped []int

	e.mu.Lock()
	for _, n := range jobNumbers {
		rec, ok := e.records[n]
		if !ok {
			continue
		}
		l := rec.Loader()
		if l.Completed() || l.Stopping() {
			continue
		}
		rec.Stop()
		stopped = append(stopped, n)
	}
	e.mu.Unlock()

	for _, n := range stopped {
		e.logger.Info("job stopped", slog.Int("job_number", n))
		e.extensions.EmitJobStopped(e.ctx, n)
	}
}

// ──────────────────────────────────────────────────
// Diagnostics
// ──────────────────────────────────────────────────

func (e *Engine) record(jobNumber int) (*job.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[jobNumber]
	return rec, ok
}

// GetHandleForJob returns the channel closed when the job completes.
// It reports false for unknown or reaped jobs.
func (e *Engine) GetHandleForJob(jobNumber int) (<-chan struct{}, bool) {
	rec, ok := e.record(jobNumber)
	if !ok {
		return nil, false
	}
	return rec.Done(), true
}

// GetExecutionTimeForJob returns how long the job has run, or ran.
func (e *Engine) GetExecutionTimeForJob(jobNumber int) (time.Duration, bool) {
	rec, ok := e.record(jobNumber)
	if !ok {
		return 0, false
	}
	return rec.ExecutionTime(), true
}

// GetPendingRequests returns the number of sections the job is still
// waiting for, or zero for unknown jobs.
func (e *Engine) GetPendingRequests(jobNumber int) int {
	rec, ok := e.record(jobNumber)
	if !ok {
		return 0
	}
	return rec.PendingRequests()
}

// JobStatus is a snapshot of a registered job.
type JobStatus struct {
	JobNumber     int           `json:"job_number"`
	Completed     bool          `json:"completed"`
	Stopping      bool          `json:"stopping"`
	Submitted     int           `json:"submitted"`
	Requested     int           `json:"requested"`
	Delivered     int           `json:"delivered"`
	Pending       int           `json:"pending"`
	StartedAt     time.Time     `json:"started_at"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Status returns a snapshot of the job, or false if it is not registered.
func (e *Engine) Status(jobNumber int) (JobStatus, bool) {
	rec, ok := e.record(jobNumber)
	if !ok {
		return JobStatus{}, false
	}
	l := rec.Loader()
	return JobStatus{
		JobNumber:     jobNumber,
		Completed:     l.Completed(),
		Stopping:      l.Stopping(),
		Submitted:     l.Submitted(),
		Requested:     l.RequestedCount(),
		Delivered:     l.CompletedCount(),
		Pending:       l.Pending(),
		StartedAt:     rec.StartedAt(),
		ExecutionTime: rec.ExecutionTime(),
	}, true
}

// BackendPending returns the number of responses the backend still owes,
// or -1 if the backend does not report it.
func (e *Engine) BackendPending() int {
	if p, ok := e.dispatcher.(interface{ PendingCount() int }); ok {
		return p.PendingCount()
	}
	return -1
}

// Jobs returns the registered job numbers in ascending order.
func (e *Engine) Jobs() []int {
	e.mu.RLock()
	nums := make([]int, 0, len(e.records))
	for n := range e.records {
		nums = append(nums, n)
	}
	e.mu.RUnlock()

	slices.Sort(nums)
	return nums
}

// Subscribe returns a progress subscriber for the given jobs, or for every
// event when no job is given. Subscribers are closed by Close.
func (e *Engine) Subscribe(subscriberID string, jobNumbers ...int) *progress.Subscriber {
	return e.broker.SubscribeJobs(subscriberID, jobNumbers...)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Close stops every running job and the reaper, stops the backend if it
// can be stopped, and notifies extensions. Later pushes fail with
// ErrEngineClosed.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.mu.Lock()
	for _, rec := range e.records {
		rec.Stop()
	}
	e.mu.Unlock()

	e.cancel()
	<-e.reaperDone

	var err error
	if s, ok := e.dispatcher.(stopper); ok {
		if stopErr := s.Stop(ctx); stopErr != nil {
			err = fmt.Errorf("stop backend: %w", stopErr)
		}
	}

	e.extensions.EmitShutdown(context.WithoutCancel(ctx))
	e.logger.Info("engine closed")
	return err
}
