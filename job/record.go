package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xraph/mapsection/section"
)

// Record binds a started Loader to the timestamps the registry's reaper
// needs.
type Record struct {
	loader      *Loader
	startedAt   time.Time
	completedAt atomic.Int64
}

// NewRecord starts l on reqs and stamps its start time. The completion
// time is stamped immediately if the loader finished during Start, and
// otherwise when its completion channel closes or ctx ends, whichever
// comes first.
func NewRecord(ctx context.Context, l *Loader, reqs []*section.Request) (*Record, error) {
	r := &Record{loader: l, startedAt: time.Now()}

	done, err := l.Start(ctx, reqs)
	if err != nil {
		return nil, err
	}

	select {
	case <-done:
		r.markCompleted()
	default:
		go func() {
			select {
			case <-done:
				r.markCompleted()
			case <-ctx.Done():
			}
		}()
	}
	return r, nil
}

func (r *Record) markCompleted() {
	r.completedAt.CompareAndSwap(0, time.Now().UnixNano())
}

// JobNumber returns the wrapped loader's job number.
func (r *Record) JobNumber() int { return r.loader.JobNumber() }

// Loader returns the wrapped loader.
func (r *Record) Loader() *Loader { return r.loader }

// StartedAt returns when the record was created.
func (r *Record) StartedAt() time.Time { return r.startedAt }

// CompletedAt returns when the loader completed, if it has.
func (r *Record) CompletedAt() (time.Time, bool) {
	n := r.completedAt.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// Done returns the loader's completion channel.
func (r *Record) Done() <-chan struct{} { return r.loader.Done() }

// ExecutionTime returns the loader's run time.
func (r *Record) ExecutionTime() time.Duration { return r.loader.Elapsed() }

// PendingRequests returns the number of sent requests still outstanding.
func (r *Record) PendingRequests() int { return r.loader.Pending() }

// Stop stops the wrapped loader.
func (r *Record) Stop() { r.loader.Stop() }

// Release cancels the job's context. Call it once the record is dropped.
func (r *Record) Release() { r.loader.job.Cancel() }
