// Package ext defines the extension system for the section pipeline.
//
// Extensions are notified of job lifecycle events and can react to them,
// for example by recording metrics or streaming progress to clients.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type slowJobs struct{ logger *slog.Logger }
//
//	func (e *slowJobs) Name() string { return "slow-jobs" }
//
//	func (e *slowJobs) OnJobCompleted(ctx context.Context, jobNumber int, elapsed time.Duration) error {
//	    if elapsed > 10*time.Second {
//	        e.logger.Warn("slow viewport load", slog.Int("job_number", jobNumber))
//	    }
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [RequestAdded]: a viewport load was registered
//   - [SectionLoaded]: a section reached the caller, from the cache or generated
//   - [JobCompleted]: the job's completion signal fired
//   - [JobStopped]: the job was asked to stop
//   - [JobReaped]: the reaper removed a completed job
//   - [JobStuck]: the job is running past the stuck threshold
//
// # Other Hooks
//
//   - [Shutdown]: the engine is closing
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never interrupt the pipeline.
package ext
