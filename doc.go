// Package mapsection is the job-dispatch and result-cache pipeline beneath
// an interactive fractal explorer.
//
// A viewport is partitioned into fixed-size sections. Sections already
// present in a result cache are returned synchronously; the rest are handed
// to a generation backend and delivered to a per-job callback as they
// complete, the final one tagged as the last section of its job.
//
// # Quick Start
//
//	store := memory.New()
//	d := backend.New(gen, backend.WithPersistence(store, 3))
//	_ = d.Start(ctx)
//
//	eng, err := engine.New(store, d)
//	sections, jobNumber, err := eng.Push(ctx, viewport, settings, func(s *section.Section) {
//	    render(s)
//	    s.Release()
//	})
//
// # Architecture
//
// The engine package owns the job registry and its reaper. Each job with
// cache misses is driven by a job.Loader wrapped in a job.Record. Progress
// is published as tagged events keyed by job number through the progress
// broker. Result caches live under cache/, one package per store, and
// package api serves the registry over HTTP.
package mapsection
