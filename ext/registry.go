package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/mapsection/job"
)

// Compile-time check that the registry can drive a loader.
var _ job.Emitter = (*Registry)(nil)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type requestAddedEntry struct {
	name string
	hook RequestAdded
}

type sectionLoadedEntry struct {
	name string
	hook SectionLoaded
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobStoppedEntry struct {
	name string
	hook JobStopped
}

type jobReapedEntry struct {
	name string
	hook JobReaped
}

type jobStuckEntry struct {
	name string
	hook JobStuck
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register must not be called concurrently with the emit methods.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	requestAdded  []requestAddedEntry
	sectionLoaded []sectionLoadedEntry
	jobCompleted  []jobCompletedEntry
	jobStopped    []jobStoppedEntry
	jobReaped     []jobReapedEntry
	jobStuck      []jobStuckEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RequestAdded); ok {
		r.requestAdded = append(r.requestAdded, requestAddedEntry{name, h})
	}
	if h, ok := e.(SectionLoaded); ok {
		r.sectionLoaded = append(r.sectionLoaded, sectionLoadedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobStopped); ok {
		r.jobStopped = append(r.jobStopped, jobStoppedEntry{name, h})
	}
	if h, ok := e.(JobReaped); ok {
		r.jobReaped = append(r.jobReaped, jobReapedEntry{name, h})
	}
	if h, ok := e.(JobStuck); ok {
		r.jobStuck = append(r.jobStuck, jobStuckEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitRequestAdded notifies all extensions that implement RequestAdded.
func (r *Registry) EmitRequestAdded(ctx context.Context, ra job.RequestAdded) {
	for _, e := range r.requestAdded {
		if err := e.hook.OnRequestAdded(ctx, ra); err != nil {
			r.logHookError("OnRequestAdded", e.name, err)
		}
	}
}

// EmitSectionLoaded notifies all extensions that implement SectionLoaded.
func (r *Registry) EmitSectionLoaded(ctx context.Context, s job.SectionLoaded) {
	for _, e := range r.sectionLoaded {
		if err := e.hook.OnSectionLoaded(ctx, s); err != nil {
			r.logHookError("OnSectionLoaded", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, jobNumber int, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, jobNumber, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobStopped notifies all extensions that implement JobStopped.
func (r *Registry) EmitJobStopped(ctx context.Context, jobNumber int) {
	for _, e := range r.jobStopped {
		if err := e.hook.OnJobStopped(ctx, jobNumber); err != nil {
			r.logHookError("OnJobStopped", e.name, err)
		}
	}
}

// EmitJobReaped notifies all extensions that implement JobReaped.
func (r *Registry) EmitJobReaped(ctx context.Context, jobNumber int, age time.Duration) {
	for _, e := range r.jobReaped {
		if err := e.hook.OnJobReaped(ctx, jobNumber, age); err != nil {
			r.logHookError("OnJobReaped", e.name, err)
		}
	}
}

// EmitJobStuck notifies all extensions that implement JobStuck.
func (r *Registry) EmitJobStuck(ctx context.Context, jobNumber int, running time.Duration) {
	for _, e := range r.jobStuck {
		if err := e.hook.OnJobStuck(ctx, jobNumber, running); err != nil {
			r.logHookError("OnJobStuck", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
