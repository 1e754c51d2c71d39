package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// StartRunSpan opens the root span of a run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, run *agent.Run) (context.Context, trace.Span) {
	return tracer.Start(ctx, "run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("osagent.run_id", run.ID),
			attribute.String("osagent.task", run.Task),
			attribute.String("osagent.component.digest", run.ComponentDigest),
			attribute.Int("osagent.attempt", run.Attempt),
		),
	)
}

// StartStepSpan opens the span of one guest step.
func StartStepSpan(ctx context.Context, tracer trace.Tracer, runID string, step uint32) (context.Context, trace.Span) {
	return tracer.Start(ctx, "step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("osagent.run_id", runID),
			attribute.Int64("osagent.step", int64(step)),
		),
	)
}

// EndSpan records err on span, sets the status and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
