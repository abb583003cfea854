package ext

import (
	"context"
	"time"

	"github.com/xraph/mapsection/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// RequestAdded is called after a viewport load is registered, whether or
// not any section needs generating.
type RequestAdded interface {
	OnRequestAdded(ctx context.Context, r job.RequestAdded) error
}

// SectionLoaded is called for every section delivered to a caller.
type SectionLoaded interface {
	OnSectionLoaded(ctx context.Context, s job.SectionLoaded) error
}

// JobCompleted is called once when a job's completion signal fires.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, jobNumber int, elapsed time.Duration) error
}

// JobStopped is called when a job is asked to stop.
type JobStopped interface {
	OnJobStopped(ctx context.Context, jobNumber int) error
}

// JobReaped is called when the reaper removes a completed job.
type JobReaped interface {
	OnJobReaped(ctx context.Context, jobNumber int, age time.Duration) error
}

// JobStuck is called for each job the reaper finds running past the stuck
// threshold.
type JobStuck interface {
	OnJobStuck(ctx context.Context, jobNumber int, running time.Duration) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
