package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/osagent/domain/middleware"
)

// Metric names exported by the action pipeline.
const (
	MetricActionsTotal   = "osagent_actions_total"
	MetricActionDuration = "osagent_action_duration_seconds"
)

// Action outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MetricsConfig configures the metrics middleware.
type MetricsConfig struct {
	// Meter is the meter to record on. If nil, the global provider is used.
	Meter metric.Meter
}

// Metrics returns middleware that counts actions by capability and outcome
// and records their latency.
func Metrics(cfg MetricsConfig) (middleware.Middleware, error) {
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(TracerName)
	}

	total, err := meter.Int64Counter(MetricActionsTotal,
		metric.WithDescription("Actions executed, by capability and status."),
		metric.WithUnit("{action}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricActionsTotal, err)
	}
	duration, err := meter.Float64Histogram(MetricActionDuration,
		metric.WithDescription("Action execution latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricActionDuration, err)
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (json.RawMessage, error) {
			start := time.Now()
			output, err := next(ctx, execCtx)

			status := StatusSuccess
			if err != nil {
				status = StatusError
			}
			capAttr := attribute.String("capability", execCtx.Action.Capability)
			total.Add(ctx, 1, metric.WithAttributes(capAttr, attribute.String("status", status)))
			duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(capAttr))

			return output, err
		}
	}, nil
}
