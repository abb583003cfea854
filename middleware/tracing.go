package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/mapsection/section"
)

// tracerName is the instrumentation scope for generation spans.
const tracerName = "github.com/xraph/mapsection"

// Tracing wraps each generation in a span from the global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer wraps each generation in a span from tracer.
//
// Span attributes: mapsection.job_number, mapsection.request_number,
// mapsection.subdivision_id, mapsection.block.x, mapsection.block.y,
// mapsection.target_iterations.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, req *section.Request, next Handler) error {
		ctx, span := tracer.Start(ctx, "mapsection.section.generate",
			trace.WithAttributes(
				attribute.Int("mapsection.job_number", req.JobNumber),
				attribute.Int("mapsection.request_number", req.RequestNumber),
				attribute.String("mapsection.subdivision_id", req.Subdivision.ID.String()),
				attribute.Int64("mapsection.block.x", req.BlockOffset.X),
				attribute.Int64("mapsection.block.y", req.BlockOffset.Y),
				attribute.Int("mapsection.target_iterations", req.Settings.TargetIterations),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
