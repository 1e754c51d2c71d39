package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	domainmw "github.com/felixgeelhaar/osagent/domain/middleware"
	mw "github.com/felixgeelhaar/osagent/infrastructure/middleware"
)

func execContext(capName, tag string) *domainmw.ExecutionContext {
	action := capability.PlannedAction{Capability: capName, Input: `{"path":"."}`}
	if tag != "" {
		action.AuditTag = &tag
	}
	return &domainmw.ExecutionContext{
		RunID:  "run-1",
		Step:   2,
		Action: action,
		Input:  json.RawMessage(action.Input),
	}
}

func handlerReturning(out string, err error) domainmw.Handler {
	return func(context.Context, *domainmw.ExecutionContext) (json.RawMessage, error) {
		if err != nil {
			return nil, err
		}
		return json.RawMessage(out), nil
	}
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantOut string
	}{
		{name: "success", wantOut: `{"ok":true}`},
		{name: "failure", err: capability.Denied("command `rm` is not allowed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := mw.Logging(mw.LoggingConfig{LogInput: true, LogOutput: true})(handlerReturning(`{"ok":true}`, tt.err))
			out, err := h(context.Background(), execContext("fs.list_dir", "tag"))
			if !errors.Is(err, tt.err) {
				t.Errorf("Logging() error = %v, want %v", err, tt.err)
			}
			if string(out) != tt.wantOut {
				t.Errorf("Logging() output = %s, want %s", out, tt.wantOut)
			}
		})
	}
}

func TestTracing(t *testing.T) {
	t.Parallel()

	t.Run("records span per action", func(t *testing.T) {
		t.Parallel()

		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		cfg := mw.DefaultTracingConfig()
		cfg.Tracer = tp.Tracer("test")

		h := mw.Tracing(cfg)(handlerReturning(`{}`, nil))
		if _, err := h(context.Background(), execContext("fs.read_file", "read-readme")); err != nil {
			t.Fatalf("Tracing() error = %v", err)
		}

		spans := recorder.Ended()
		if len(spans) != 1 {
			t.Fatalf("ended spans = %d, want 1", len(spans))
		}
		if spans[0].Name() != "action.fs.read_file" {
			t.Errorf("span name = %q, want action.fs.read_file", spans[0].Name())
		}
		if spans[0].Status().Code != codes.Ok {
			t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
		}
		attrs := attribute.NewSet(spans[0].Attributes()...)
		if v, ok := attrs.Value("osagent.audit_tag"); !ok || v.AsString() != "read-readme" {
			t.Errorf("audit_tag attribute = %v, want read-readme", v.AsString())
		}
		if v, ok := attrs.Value("osagent.step"); !ok || v.AsInt64() != 2 {
			t.Errorf("step attribute = %v, want 2", v.AsInt64())
		}
	})

	t.Run("records error on span", func(t *testing.T) {
		t.Parallel()

		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		cfg := mw.DefaultTracingConfig()
		cfg.Tracer = tp.Tracer("test")

		h := mw.Tracing(cfg)(handlerReturning("", capability.NotFound("missing")))
		if _, err := h(context.Background(), execContext("fs.read_file", "")); err == nil {
			t.Fatal("Tracing() error = nil, want error")
		}

		span := recorder.Ended()[0]
		if span.Status().Code != codes.Error {
			t.Errorf("span status = %v, want Error", span.Status().Code)
		}
		attrs := attribute.NewSet(span.Attributes()...)
		if _, ok := attrs.Value("osagent.audit_tag"); ok {
			t.Error("audit_tag attribute present for untagged action")
		}
		if v, _ := attrs.Value("osagent.error.kind"); v.AsString() != string(capability.KindNotFound) {
			t.Errorf("error.kind = %q, want %q", v.AsString(), capability.KindNotFound)
		}
	})

	t.Run("noop tracer passes through", func(t *testing.T) {
		t.Parallel()

		cfg := mw.DefaultTracingConfig()
		cfg.Tracer = noop.NewTracerProvider().Tracer("test")
		h := mw.Tracing(cfg)(handlerReturning(`{"a":1}`, nil))
		out, err := h(context.Background(), execContext("proc.spawn", ""))
		if err != nil || string(out) != `{"a":1}` {
			t.Errorf("Tracing() = %s, %v, want {\"a\":1}, nil", out, err)
		}
	})
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := mw.Metrics(mw.MetricsConfig{Meter: mp.Meter("test")})
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}

	ok := m(handlerReturning(`{}`, nil))
	bad := m(handlerReturning("", capability.Denied("nope")))
	ctx := context.Background()
	_, _ = ok(ctx, execContext("fs.list_dir", ""))
	_, _ = ok(ctx, execContext("fs.list_dir", ""))
	_, _ = bad(ctx, execContext("proc.spawn", ""))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	counts := map[string]int64{}
	var histogramSeen bool
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case mw.MetricActionsTotal:
				sum, isSum := md.Data.(metricdata.Sum[int64])
				if !isSum {
					t.Fatalf("%s data = %T, want Sum[int64]", md.Name, md.Data)
				}
				for _, dp := range sum.DataPoints {
					c, _ := dp.Attributes.Value("capability")
					s, _ := dp.Attributes.Value("status")
					counts[c.AsString()+"/"+s.AsString()] = dp.Value
				}
			case mw.MetricActionDuration:
				histogramSeen = true
			}
		}
	}

	want := map[string]int64{"fs.list_dir/success": 2, "proc.spawn/error": 1}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("%s[%s] = %d, want %d", mw.MetricActionsTotal, key, counts[key], n)
		}
	}
	if !histogramSeen {
		t.Errorf("%s not recorded", mw.MetricActionDuration)
	}
}

func TestLedgerRecording(t *testing.T) {
	t.Parallel()

	l := ledger.New("run-1")
	m := mw.LedgerRecording(mw.LedgerConfig{Ledger: l})

	_, _ = m(handlerReturning(`{"entries":[]}`, nil))(context.Background(), execContext("fs.list_dir", "ls"))
	_, _ = m(handlerReturning("", capability.Denied("command `rm` is not allowed")))(context.Background(), execContext("proc.spawn", ""))

	if got := len(l.EntriesByType(ledger.EntryActionCall)); got != 2 {
		t.Errorf("action_call entries = %d, want 2", got)
	}

	results := l.EntriesByType(ledger.EntryActionResult)
	if len(results) != 1 {
		t.Fatalf("action_result entries = %d, want 1", len(results))
	}
	var rd ledger.ActionResultDetails
	if err := results[0].DecodeDetails(&rd); err != nil {
		t.Fatalf("DecodeDetails() error = %v", err)
	}
	if rd.AuditTag != "ls" || string(rd.Output) != `{"entries":[]}` {
		t.Errorf("ActionResultDetails = %+v", rd)
	}
	if results[0].Step != 2 {
		t.Errorf("Step = %d, want 2", results[0].Step)
	}

	errs := l.EntriesByType(ledger.EntryActionError)
	var ed ledger.ActionErrorDetails
	if len(errs) != 1 {
		t.Fatalf("action_error entries = %d, want 1", len(errs))
	}
	if err := errs[0].DecodeDetails(&ed); err != nil {
		t.Fatalf("DecodeDetails() error = %v", err)
	}
	if ed.Error != "command `rm` is not allowed" {
		t.Errorf("ActionErrorDetails.Error = %q", ed.Error)
	}
}

func TestLedgerRecording_NilLedger(t *testing.T) {
	t.Parallel()

	h := mw.LedgerRecording(mw.LedgerConfig{})(handlerReturning(`{}`, nil))
	if _, err := h(context.Background(), execContext("fs.list_dir", "")); err != nil {
		t.Errorf("LedgerRecording() error = %v, want nil", err)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	var throttled int
	h := mw.RateLimit(mw.RateLimitConfig{
		Scope: mw.ScopePerRun,
		Rate:  2,
		Burst: 2,
		OnLimitExceeded: func(context.Context, *domainmw.ExecutionContext) {
			throttled++
		},
	})(handlerReturning(`{}`, nil))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := h(ctx, execContext("fs.list_dir", "")); err != nil {
			t.Fatalf("call %d error = %v, want nil", i, err)
		}
	}

	_, err := h(ctx, execContext("fs.list_dir", ""))
	if !errors.Is(err, capability.ErrDenied) {
		t.Fatalf("RateLimit() error = %v, want denied", err)
	}
	if err.Error() != mw.RateLimitExceededMessage {
		t.Errorf("RateLimit() error = %q, want %q", err.Error(), mw.RateLimitExceededMessage)
	}
	if throttled != 1 {
		t.Errorf("OnLimitExceeded calls = %d, want 1", throttled)
	}

	other := execContext("fs.list_dir", "")
	other.RunID = "run-2"
	if _, err := h(ctx, other); err != nil {
		t.Errorf("per-run scope shared bucket across runs: %v", err)
	}
}
