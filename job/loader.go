package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// Dispatcher is the part of the generation backend a loader drives.
type Dispatcher interface {
	// AddWork queues req. It blocks while the backend is saturated and
	// returns ctx's error if ctx ends first. onResponse is called once for
	// req and once more for its mirror, if any.
	AddWork(ctx context.Context, req *section.Request, onResponse section.ResponseFunc) error

	// CancelJob drops queued work for the job.
	CancelJob(jobNumber int)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEmitter sets the receiver of the loader's progress.
func WithEmitter(e Emitter) LoaderOption {
	return func(l *Loader) { l.emitter = e }
}

// WithBuilder sets the builder that turns responses into sections.
func WithBuilder(b *section.Builder) LoaderOption {
	return func(l *Loader) { l.builder = b }
}

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// Loader drives one viewport load.
type Loader struct {
	job        *section.Job
	dispatcher Dispatcher
	callback   section.Callback
	emitter    Emitter
	builder    *section.Builder
	logger     *slog.Logger

	ctx      context.Context
	requests []*section.Request

	// submitted is the number of responses expected when every request is
	// sent, fixed by Start.
	submitted int64
	requested atomic.Int64
	completed atomic.Int64

	started  atomic.Bool
	running  atomic.Bool
	stopping atomic.Bool
	finished atomic.Bool

	startedAt time.Time
	elapsed   atomic.Int64

	done     chan struct{}
	doneOnce sync.Once
}

// NewLoader creates a loader for job j. cb receives every delivered
// section; it may be nil.
func NewLoader(j *section.Job, d Dispatcher, cb section.Callback, opts ...LoaderOption) *Loader {
	l := &Loader{
		job:        j,
		dispatcher: d,
		callback:   cb,
		emitter:    nopEmitter{},
		logger:     slog.Default(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.builder == nil {
		l.builder = section.NewBuilder(pool.NewShapes(mapsection.DefaultConfig().PoolMaxFree))
	}
	return l
}

// Start begins submitting reqs in the background and returns the
// completion channel, closed exactly once. Starting a loader twice is an
// error.
func (l *Loader) Start(ctx context.Context, reqs []*section.Request) (<-chan struct{}, error) {
	if !l.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("job %d: %w", l.job.Number(), mapsection.ErrLoaderStarted)
	}

	l.ctx = ctx
	l.requests = reqs
	for _, r := range reqs {
		l.submitted += int64(r.Weight())
	}
	l.startedAt = time.Now()
	l.running.Store(true)

	if l.submitted == 0 {
		l.finished.Store(true)
		l.signal()
		return l.done, nil
	}

	go l.submit()
	return l.done, nil
}

func (l *Loader) submit() {
	for _, req := range l.requests {
		if l.stopping.Load() || req.Cancelled() {
			l.stopping.Store(true)
			break
		}

		weight := int64(req.Weight())
		now := time.Now()
		req.MarkSubmitted(now)
		if req.Mirror != nil {
			req.Mirror.MarkSubmitted(now)
		}

		l.requested.Add(weight)
		if l.stopping.Load() || req.Cancelled() {
			l.requested.Add(-weight)
			l.stopping.Store(true)
			break
		}
		err := l.dispatcher.AddWork(l.job.Context(), req, l.handleResponse)
		if err == nil {
			req.MarkSent()
			continue
		}

		if req.Cancelled() || errors.Is(err, context.Canceled) {
			// Never sent: take it back out of the accounting.
			l.requested.Add(-weight)
			l.stopping.Store(true)
			break
		}

		l.logger.Warn("section request not accepted by backend",
			slog.Int("job_number", req.JobNumber),
			slog.Int("request_number", req.RequestNumber),
			slog.String("error", err.Error()),
		)
		l.handleResponse(req, nil)
		if req.Mirror != nil {
			l.handleResponse(req.Mirror, nil)
		}
	}

	if l.stopping.Load() && l.completed.Load() >= l.requested.Load() &&
		l.finished.CompareAndSwap(false, true) {
		l.signal()
	}
}

// handleResponse correlates one response with its request.
func (l *Loader) handleResponse(req *section.Request, resp *section.Response) {
	req.MarkCompleted(time.Now())
	if resp != nil && resp.GenerationDuration > 0 {
		req.SetGenerationDuration(resp.GenerationDuration)
	}
	if !req.MarkHandled() {
		resp.Release()
		return
	}

	sec := l.builder.Build(req, resp, false)
	empty := sec.IsEmpty()
	completed := l.completed.Add(1)

	reached := completed >= l.submitted ||
		(l.stopping.Load() && completed >= l.requested.Load())
	final := reached && l.finished.CompareAndSwap(false, true)

	if final {
		l.elapsed.Store(int64(time.Since(l.startedAt)))
		sec.IsLastSection = true
	} else if empty {
		l.logger.Debug("dropping empty section",
			slog.Int("job_number", req.JobNumber),
			slog.Int("request_number", req.RequestNumber),
			slog.Bool("cancelled", sec.RequestCancelled),
		)
		return
	}

	loaded := SectionLoaded{
		JobNumber:          req.JobNumber,
		RequestNumber:      req.RequestNumber,
		IsLast:             final,
		Completed:          int(completed),
		ProcessingDuration: req.ProcessingDuration(),
		GenerationDuration: req.GenerationDuration(),
	}

	l.deliver(sec)
	if !empty {
		l.emitter.EmitSectionLoaded(l.ctx, loaded)
	}
	if final {
		l.signal()
	}
}

func (l *Loader) deliver(sec *section.Section) {
	if l.callback == nil {
		sec.Release()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("section callback panicked",
				slog.Int("job_number", sec.JobNumber),
				slog.Int("request_number", sec.RequestNumber),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	l.callback(sec)
}

func (l *Loader) signal() {
	l.doneOnce.Do(func() {
		if l.elapsed.Load() == 0 {
			l.elapsed.Store(int64(time.Since(l.startedAt)))
		}
		close(l.done)
		l.emitter.EmitJobCompleted(l.ctx, l.job.Number(), l.Elapsed())
	})
}

// Stop stops submitting further requests and asks the backend to drop the
// job's queued work. Sections already sent may still be delivered. Stop
// is a no-op before Start, after completion, and on repeated calls.
func (l *Loader) Stop() {
	if !l.running.Load() || l.finished.Load() {
		return
	}
	if !l.stopping.CompareAndSwap(false, true) {
		return
	}

	l.job.Cancel()
	l.dispatcher.CancelJob(l.job.Number())

	l.logger.Debug("job stopping",
		slog.Int("job_number", l.job.Number()),
		slog.Int64("requested", l.requested.Load()),
		slog.Int64("completed", l.completed.Load()),
	)
}

// JobNumber returns the loader's job number.
func (l *Loader) JobNumber() int { return l.job.Number() }

// Done returns the completion channel.
func (l *Loader) Done() <-chan struct{} { return l.done }

// Completed reports whether the completion channel has been closed.
func (l *Loader) Completed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Stopping reports whether Stop has been called.
func (l *Loader) Stopping() bool { return l.stopping.Load() }

// Submitted returns the number of responses expected if every request is
// sent.
func (l *Loader) Submitted() int { return int(l.submitted) }

// RequestedCount returns the number of responses expected from requests
// sent so far.
func (l *Loader) RequestedCount() int { return int(l.requested.Load()) }

// CompletedCount returns the number of responses received.
func (l *Loader) CompletedCount() int { return int(l.completed.Load()) }

// Pending returns requested minus completed.
func (l *Loader) Pending() int {
	return int(l.requested.Load() - l.completed.Load())
}

// Elapsed returns the run time so far, or the total once completed.
func (l *Loader) Elapsed() time.Duration {
	if d := l.elapsed.Load(); d != 0 {
		return time.Duration(d)
	}
	if !l.running.Load() {
		return 0
	}
	return time.Since(l.startedAt)
}
