package section

import (
	"context"
	"sync"
)

// Job is the cancellation context shared by every request of one job.
// Cancelling it marks all of the job's requests that have not been sent as
// cancelled; whether a job is cancelled is an explicit query.
type Job struct {
	number int
	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
}

// NewJob creates the cancellation context for jobNumber, derived from
// parent.
func NewJob(parent context.Context, jobNumber int) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{number: jobNumber, ctx: ctx, cancel: cancel}
}

// Number returns the job number.
func (j *Job) Number() int { return j.number }

// Context returns a context that is done once the job is cancelled.
func (j *Job) Context() context.Context { return j.ctx }

// Cancel marks the job cancelled. It is safe to call more than once.
func (j *Job) Cancel() {
	j.once.Do(j.cancel)
}

// Cancelled reports whether the job has been cancelled.
func (j *Job) Cancelled() bool {
	return j.ctx.Err() != nil
}
