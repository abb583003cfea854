// Package engine is the job registry at the top of the section pipeline.
// It partitions a viewport into section requests, serves what it can from
// the result cache, and hands the rest to a job loader that drives the
// generation backend. Running jobs are tracked by number so callers can
// stop them, wait on them, and read their timings; a reaper forgets them
// once they have been complete for a grace period.
//
// # Building an Engine
//
//	store := memory.New()
//	d := backend.New(generator, backend.WithWorkers(8))
//	_ = d.Start(ctx)
//
//	eng, err := engine.New(store, d,
//	    engine.WithLogger(logger),
//	    engine.WithExtension(observability.NewMetricsExtension()),
//	)
//
// # Loading a Viewport
//
//	cached, jobNumber, err := eng.Push(ctx, viewport, settings, func(s *section.Section) {
//	    draw(s)
//	    s.Release()
//	})
//
// Cached sections are returned directly. Generated sections arrive on the
// callback from backend goroutines; exactly one carries IsLastSection.
//
// # Progress
//
//	sub := eng.Subscribe("ui", jobNumber)
//	for evt := range sub.C() {
//	    ...
//	}
//
// # Options
//
//   - [WithConfig] sets the reaper intervals and pool sizes
//   - [WithLogger] sets the structured logger
//   - [WithExtension] registers a lifecycle extension
//   - [WithPools] shares buffer pools with the backend
//   - [WithBroker] supplies a preconfigured progress broker
//   - [WithMeterProvider] records OpenTelemetry metrics
package engine
