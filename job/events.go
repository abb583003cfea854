package job

import (
	"context"
	"time"
)

// RequestAdded describes a newly registered job.
type RequestAdded struct {
	JobNumber int
	Label     string

	// TotalSections counts every section of the viewport, including
	// mirrors; Satisfied counts those already served from the cache.
	TotalSections int
	Satisfied     int
}

// SectionLoaded describes one delivered section.
type SectionLoaded struct {
	JobNumber     int
	RequestNumber int

	// FromCache marks a section served from the cache when the job was
	// pushed. Such sections carry no counts or durations.
	FromCache bool
	IsLast    bool

	// Completed is the loader's completed count after this section.
	Completed int

	ProcessingDuration time.Duration
	GenerationDuration time.Duration
}

// Emitter receives a loader's progress. Implementations must be safe for
// concurrent use; SectionLoaded may be emitted from many goroutines.
type Emitter interface {
	EmitSectionLoaded(ctx context.Context, s SectionLoaded)
	EmitJobCompleted(ctx context.Context, jobNumber int, elapsed time.Duration)
}

type nopEmitter struct{}

func (nopEmitter) EmitSectionLoaded(context.Context, SectionLoaded)        {}
func (nopEmitter) EmitJobCompleted(context.Context, int, time.Duration) {}
