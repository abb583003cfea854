// Package observability records pipeline metrics with OpenTelemetry.
// [MetricsExtension] is an ext.Extension that counts registered jobs,
// cache hits, delivered sections, completions, stops, reaps and stuck
// jobs, and records section and job durations.
//
// Per-generation spans and metrics live in the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
