package section

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Request asks for the values of one block of a subdivision.
//
// The bookkeeping fields are written by the loader's submission flow and by
// backend goroutines and are accessed through methods.
type Request struct {
	JobNumber     int
	RequestNumber int

	Subdivision    Subdivision
	BlockOffset    VectorLong
	JobBlockOffset VectorLong
	MapPosition    RPoint

	// ScreenPosition is the block coordinate within the viewport;
	// ScreenPositionRelativeToCenter is the same position measured from the
	// viewport's center block.
	ScreenPosition                 PointInt
	ScreenPositionRelativeToCenter VectorInt

	Settings CalcSettings

	// IsInverted marks a block below the map's horizontal axis. Its
	// BlockOffset names the block above the axis whose values, flipped
	// vertically, produce this one.
	IsInverted bool

	// Mirror is an inverted counterpart generated together with this
	// request instead of separately.
	Mirror *Request

	job *Job

	submittedAt  atomic.Int64
	completedAt  atomic.Int64
	genDuration  atomic.Int64
	sent         atomic.Bool
	handled      atomic.Bool
	foundInCache atomic.Bool
}

// NewRequest creates a request bound to job.
func NewRequest(job *Job, requestNumber int) *Request {
	return &Request{
		JobNumber:     job.Number(),
		RequestNumber: requestNumber,
		job:           job,
	}
}

// ID returns "<job>/<request>".
func (r *Request) ID() string {
	return fmt.Sprintf("%d/%d", r.JobNumber, r.RequestNumber)
}

// Job returns the job the request belongs to.
func (r *Request) Job() *Job { return r.job }

// BlockSize returns the request's block size in pixels.
func (r *Request) BlockSize() SizeInt { return r.Subdivision.BlockSize }

// Cancelled reports whether the owning job has been cancelled.
func (r *Request) Cancelled() bool {
	return r.job != nil && r.job.Cancelled()
}

// Weight is the number of responses the request produces: two when it has
// a mirror, otherwise one.
func (r *Request) Weight() int {
	if r.Mirror != nil {
		return 2
	}
	return 1
}

// MarkSubmitted stamps the submission time.
func (r *Request) MarkSubmitted(at time.Time) { r.submittedAt.Store(at.UnixNano()) }

// MarkCompleted stamps the completion time.
func (r *Request) MarkCompleted(at time.Time) { r.completedAt.Store(at.UnixNano()) }

// SubmittedAt returns the submission time, or the zero time.
func (r *Request) SubmittedAt() time.Time { return unixNano(r.submittedAt.Load()) }

// CompletedAt returns the completion time, or the zero time.
func (r *Request) CompletedAt() time.Time { return unixNano(r.completedAt.Load()) }

// ProcessingDuration is the time between submission and completion.
func (r *Request) ProcessingDuration() time.Duration {
	s, c := r.submittedAt.Load(), r.completedAt.Load()
	if s == 0 || c == 0 {
		return 0
	}
	return time.Duration(c - s)
}

// SetGenerationDuration records how long the generator took.
func (r *Request) SetGenerationDuration(d time.Duration) { r.genDuration.Store(int64(d)) }

// GenerationDuration returns how long the generator took.
func (r *Request) GenerationDuration() time.Duration { return time.Duration(r.genDuration.Load()) }

// MarkSent records that the request was handed to the backend.
func (r *Request) MarkSent() { r.sent.Store(true) }

// Sent reports whether the request was handed to the backend.
func (r *Request) Sent() bool { return r.sent.Load() }

// MarkHandled records that the request's response was consumed. It reports
// false if it had already been handled.
func (r *Request) MarkHandled() bool { return r.handled.CompareAndSwap(false, true) }

// Handled reports whether the request's response was consumed.
func (r *Request) Handled() bool { return r.handled.Load() }

// MarkFoundInCache records a cache hit.
func (r *Request) MarkFoundInCache() { r.foundInCache.Store(true) }

// FoundInCache reports whether the request was satisfied by the cache.
func (r *Request) FoundInCache() bool { return r.foundInCache.Load() }

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
