package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/mapsection/ext"
	"github.com/xraph/mapsection/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.RequestAdded  = (*MetricsExtension)(nil)
	_ ext.SectionLoaded = (*MetricsExtension)(nil)
	_ ext.JobCompleted  = (*MetricsExtension)(nil)
	_ ext.JobStopped    = (*MetricsExtension)(nil)
	_ ext.JobReaped     = (*MetricsExtension)(nil)
	_ ext.JobStuck      = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope for pipeline metrics.
const meterName = "github.com/xraph/mapsection/observability"

// MetricsExtension records pipeline-wide metrics from lifecycle hooks.
type MetricsExtension struct {
	jobsAdded         metric.Int64Counter
	sectionsRequested metric.Int64Counter
	sectionsCached    metric.Int64Counter
	sectionsLoaded    metric.Int64Counter
	processing        metric.Float64Histogram
	generation        metric.Float64Histogram
	jobsCompleted     metric.Int64Counter
	jobDuration       metric.Float64Histogram
	jobsStopped       metric.Int64Counter
	jobsReaped        metric.Int64Counter
	jobsStuck         metric.Int64Counter
}

// NewMetricsExtension records on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter records on meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// Instrument constructors fall back to noop instruments on error.
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, _ := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}

	return &MetricsExtension{
		jobsAdded:         counter("mapsection.job.added", "Viewport loads registered", "{job}"),
		sectionsRequested: counter("mapsection.section.requested", "Sections requested, mirrors included", "{section}"),
		sectionsCached:    counter("mapsection.section.cache_hits", "Sections served from the result cache", "{section}"),
		sectionsLoaded:    counter("mapsection.section.loaded", "Generated sections delivered", "{section}"),
		processing:        seconds("mapsection.section.processing.duration", "Time from submission to response"),
		generation:        seconds("mapsection.section.generation.duration", "Time spent generating a section"),
		jobsCompleted:     counter("mapsection.job.completed", "Jobs whose completion signal fired", "{job}"),
		jobDuration:       seconds("mapsection.job.duration", "Job run time"),
		jobsStopped:       counter("mapsection.job.stopped", "Jobs stopped early", "{job}"),
		jobsReaped:        counter("mapsection.job.reaped", "Completed jobs removed by the reaper", "{job}"),
		jobsStuck:         counter("mapsection.job.stuck", "Stuck-job observations by the reaper", "{job}"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnRequestAdded implements ext.RequestAdded.
func (m *MetricsExtension) OnRequestAdded(ctx context.Context, r job.RequestAdded) error {
	m.jobsAdded.Add(ctx, 1)
	m.sectionsRequested.Add(ctx, int64(r.TotalSections))
	m.sectionsCached.Add(ctx, int64(r.Satisfied))
	return nil
}

// OnSectionLoaded implements ext.SectionLoaded.
func (m *MetricsExtension) OnSectionLoaded(ctx context.Context, s job.SectionLoaded) error {
	attrs := metric.WithAttributes(
		attribute.Bool("last", s.IsLast),
		attribute.Bool("from_cache", s.FromCache),
	)
	m.sectionsLoaded.Add(ctx, 1, attrs)
	if s.ProcessingDuration > 0 {
		m.processing.Record(ctx, s.ProcessingDuration.Seconds())
	}
	if s.GenerationDuration > 0 {
		m.generation.Record(ctx, s.GenerationDuration.Seconds())
	}
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, _ int, elapsed time.Duration) error {
	m.jobsCompleted.Add(ctx, 1)
	m.jobDuration.Record(ctx, elapsed.Seconds())
	return nil
}

// OnJobStopped implements ext.JobStopped.
func (m *MetricsExtension) OnJobStopped(ctx context.Context, _ int) error {
	m.jobsStopped.Add(ctx, 1)
	return nil
}

// OnJobReaped implements ext.JobReaped.
func (m *MetricsExtension) OnJobReaped(ctx context.Context, _ int, _ time.Duration) error {
	m.jobsReaped.Add(ctx, 1)
	return nil
}

// OnJobStuck implements ext.JobStuck.
func (m *MetricsExtension) OnJobStuck(ctx context.Context, _ int, _ time.Duration) error {
	m.jobsStuck.Add(ctx, 1)
	return nil
}
