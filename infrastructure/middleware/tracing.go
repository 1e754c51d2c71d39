package middleware

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/middleware"
)

// TracerName is the instrumentation scope used when no tracer is supplied.
const TracerName = "github.com/felixgeelhaar/osagent"

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// Tracer is a custom tracer to use. If nil, the global provider is used.
	Tracer trace.Tracer

	// RecordInput determines if action input is recorded as a span attribute.
	RecordInput bool

	// RecordOutput determines if action output is recorded as a span attribute.
	RecordOutput bool

	// MaxAttributeSize limits the size of recorded attributes.
	MaxAttributeSize int

	// SpanNamePrefix is prepended to the capability name.
	SpanNamePrefix string

	// AdditionalAttributes are added to all spans.
	AdditionalAttributes []attribute.KeyValue
}

// DefaultTracingConfig returns a sensible default configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		RecordInput:      true,
		MaxAttributeSize: 1024,
		SpanNamePrefix:   "action.",
	}
}

// Tracing returns middleware that creates an OpenTelemetry span per action.
func Tracing(cfg TracingConfig) middleware.Middleware {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	maxSize := cfg.MaxAttributeSize
	if maxSize <= 0 {
		maxSize = 1024
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (json.RawMessage, error) {
			ctx, span := tracer.Start(ctx, cfg.SpanNamePrefix+execCtx.Action.Capability,
				trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("osagent.run_id", execCtx.RunID),
				attribute.Int64("osagent.step", int64(execCtx.Step)),
				attribute.Int("osagent.action.index", execCtx.Index),
				attribute.String("osagent.capability", execCtx.Action.Capability),
			}
			if tag := execCtx.Action.Tag(); tag != "" {
				attrs = append(attrs, attribute.String("osagent.audit_tag", tag))
			}
			if cfg.RecordInput && len(execCtx.Input) > 0 {
				attrs = append(attrs, attribute.String("osagent.action.input", truncate(string(execCtx.Input), maxSize)))
			}
			attrs = append(attrs, cfg.AdditionalAttributes...)
			span.SetAttributes(attrs...)

			output, err := next(ctx, execCtx)
			if err != nil {
				span.RecordError(err)
				span.SetAttributes(attribute.String("osagent.error.kind", string(capability.KindOf(err))))
				span.SetStatus(codes.Error, err.Error())
				return output, err
			}

			span.SetStatus(codes.Ok, "")
			if cfg.RecordOutput && len(output) > 0 {
				span.SetAttributes(attribute.String("osagent.action.output", truncate(string(output), maxSize)))
			}
			return output, nil
		}
	}
}
