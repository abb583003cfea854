// Package job drives the generation of one viewport's missing sections.
//
// # Loader
//
// A [Loader] submits a job's requests to a [Dispatcher] from its own
// goroutine and correlates the responses, which may arrive on any
// goroutine and in any order. Counters are atomic and owned by the
// loader. The response that brings the completed count to the number of
// sections submitted (or, once stopping, to the number actually sent)
// produces the section marked last and closes the completion channel.
// Empty intermediate sections are counted but neither delivered nor
// reported.
//
//	l := job.NewLoader(j, dispatcher, render, job.WithEmitter(registry))
//	done, err := l.Start(ctx, requests)
//
// # Record
//
// A [Record] wraps a started loader with the timestamps the registry's
// reaper uses to decide when a job can be forgotten.
package job
