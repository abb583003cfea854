package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/mapsection/section"
)

// meterName is the instrumentation scope for generation metrics.
const meterName = "github.com/xraph/mapsection"

// Metrics records generation metrics on the global MeterProvider.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter records generation metrics on meter:
//
//   - mapsection.section.generate.duration (Float64Histogram, seconds)
//   - mapsection.section.generations (Int64Counter)
//
// Both carry status ("ok" or "error").
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The API hands back noop instruments on error.
	duration, _ := meter.Float64Histogram(
		"mapsection.section.generate.duration",
		metric.WithDescription("Time spent generating one section"),
		metric.WithUnit("s"),
	)
	generations, _ := meter.Int64Counter(
		"mapsection.section.generations",
		metric.WithDescription("Sections generated"),
		metric.WithUnit("{section}"),
	)

	return func(ctx context.Context, _ *section.Request, next Handler) error {
		start := time.Now()
		err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(attribute.String("status", status))
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		generations.Add(ctx, 1, attrs)
		return err
	}
}
