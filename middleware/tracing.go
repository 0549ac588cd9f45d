package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adwire/conveyor/run"
)

// tracerName is the instrumentation scope name for conveyor tracing.
const tracerName = "github.com/adwire/conveyor"

// Tracing returns middleware that wraps run execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: conveyor.run.id, conveyor.source, conveyor.step,
// conveyor.correlation_id, conveyor.backfill. On error, the span status is
// set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *run.Run, next Handler) error {
		ctx, span := tracer.Start(ctx, "conveyor.run.execute",
			trace.WithAttributes(
				attribute.String("conveyor.run.id", r.ID.String()),
				attribute.String("conveyor.source", r.Source),
				attribute.String("conveyor.step", r.Step.String()),
				attribute.String("conveyor.correlation_id", r.CorrelationID),
				attribute.Bool("conveyor.backfill", r.Backfill),
			),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
