package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/osagent/domain/agent"
	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/domain/middleware"
	"github.com/felixgeelhaar/osagent/domain/run"
	"github.com/felixgeelhaar/osagent/infrastructure/guest/hostcall"
	"github.com/felixgeelhaar/osagent/infrastructure/guest/wasm"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
	inframw "github.com/felixgeelhaar/osagent/infrastructure/middleware"
	"github.com/felixgeelhaar/osagent/infrastructure/provider"
	"github.com/felixgeelhaar/osagent/infrastructure/resilience"
	"github.com/felixgeelhaar/osagent/infrastructure/resource"
)

// ErrInstantiate indicates the guest could not be instantiated.
var ErrInstantiate = errors.New("failed to instantiate guest")

// GuestFactory instantiates a guest whose host calls are served by calls
// and whose log lines go to logs.
type GuestFactory interface {
	NewGuest(ctx context.Context, calls wasm.HostCalls, logs wasm.LogSink) (agent.Guest, error)
	// Describe returns the component path and digest recorded on runs.
	Describe() (component, digest string)
}

// WasmGuests instantiates a compiled component on wazero.
type WasmGuests struct {
	Loader    *wasm.Loader
	Component *wasm.Component
}

// NewGuest implements GuestFactory.
func (w WasmGuests) NewGuest(ctx context.Context, calls wasm.HostCalls, logs wasm.LogSink) (agent.Guest, error) {
	inst, err := w.Loader.Instantiate(ctx, w.Component, calls, wasm.WithLogSink(logs))
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Describe implements GuestFactory.
func (w WasmGuests) Describe() (string, string) {
	return w.Component.Name, w.Component.Digest
}

// Task is one invocation of the host.
type Task struct {
	Task        string
	Observation json.RawMessage
	Step        uint32
}

// Runtime executes tasks: each attempt gets a fresh resource table, provider
// set and guest instance, and every attempt is persisted.
type Runtime struct {
	config     *domainconfig.HostConfig
	guests     GuestFactory
	engine     *Engine
	restarter  *resilience.Restarter
	runs       run.Store
	ledgers    ledger.Store
	middleware *middleware.Registry
}

// NewRuntime creates a runtime. config must already be built, with a
// canonical workspace root.
func NewRuntime(config RuntimeConfig) (*Runtime, error) {
	if config.Host == nil {
		return nil, errors.New("host configuration is required")
	}
	if config.Guests == nil {
		return nil, errors.New("guest factory is required")
	}
	if config.Runs == nil || config.Ledgers == nil {
		return nil, errors.New("run and ledger stores are required")
	}

	r := &Runtime{
		config:     config.Host,
		guests:     config.Guests,
		runs:       config.Runs,
		ledgers:    config.Ledgers,
		middleware: config.Middleware,
		restarter:  config.Restarter,
		engine: NewEngine(EngineConfig{
			MaxSteps: config.Host.MaxSteps,
			Tracer:   config.Tracer,
		}),
	}
	if r.restarter == nil {
		r.restarter = resilience.NewRestarter(resilience.RestarterConfig{
			MaxAttempts:  config.Host.Restart.MaxAttempts,
			InitialDelay: config.Host.Restart.InitialDelay.Duration(),
		})
	}
	if r.middleware == nil {
		mw, err := DefaultMiddleware(config.Host, config.Tracer, config.Meter)
		if err != nil {
			return nil, err
		}
		r.middleware = mw
	}
	return r, nil
}

// Execute runs task, restarting the whole run after retryable failures
// while attempts remain. The last attempt's run is returned.
func (r *Runtime) Execute(ctx context.Context, task Task) (*agent.Run, error) {
	return r.restarter.Do(ctx, func(ctx context.Context, attempt int) (*agent.Run, error) {
		return r.attempt(ctx, task, attempt)
	})
}

func (r *Runtime) attempt(ctx context.Context, task Task, attempt int) (result *agent.Run, err error) {
	runID := uuid.NewString()
	runLedger := ledger.New(runID)

	table := resource.NewTable(resource.WithCapacity(r.config.MaxHandles))
	defer func() {
		if closeErr := table.Close(); closeErr != nil {
			logging.Warn().Add(logging.RunID(runID)).Add(logging.ErrorField(closeErr)).Msg("resource teardown failed")
		}
	}()

	caps := provider.NewSet(r.config, table)
	guest, err := r.guests.NewGuest(ctx, hostcall.New(caps), guestLogs(runID, runLedger))
	if err != nil {
		return nil, &agent.RunError{Message: fmt.Sprintf("%v: %v", ErrInstantiate, err), Cause: errors.Join(ErrInstantiate, err)}
	}
	defer func() {
		if closeErr := guest.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logging.Warn().Add(logging.RunID(runID)).Add(logging.ErrorField(closeErr)).Msg("guest teardown failed")
		}
	}()

	chain := middleware.Chain(
		inframw.LedgerRecording(inframw.LedgerConfig{Ledger: runLedger}),
		r.middleware.Chain(),
	)

	var profile string
	if r.config.Browser != nil {
		profile = r.config.Browser.DefaultProfile
	}
	executor := NewExecutor(ExecutorConfig{
		Root:           r.config.WorkspaceRoot,
		Capabilities:   caps,
		Middleware:     chain,
		DefaultProfile: profile,
	})

	component, digest := r.guests.Describe()
	result, err = r.engine.Run(ctx, Session{Guest: guest, Executor: executor, Ledger: runLedger}, Request{
		RunID:           runID,
		Task:            task.Task,
		Observation:     task.Observation,
		Step:            task.Step,
		Component:       component,
		ComponentDigest: digest,
		Workspace:       r.config.WorkspaceRoot,
		Attempt:         attempt,
	})
	if result != nil {
		r.persist(context.WithoutCancel(ctx), result, runLedger)
	}
	return result, err
}

// guestLogs records guest log lines in the ledger under the step of the
// latest entry and mirrors them to the host log.
func guestLogs(runID string, runLedger *ledger.Ledger) wasm.LogSink {
	return func(level, message string) {
		var step uint32
		if last := runLedger.LastEntry(); last != nil {
			step = last.Step
		}
		runLedger.RecordGuestLog(step, level, message)
		logging.Debug().
			Add(logging.RunID(runID)).
			Add(logging.Step(step)).
			Add(logging.Str("level", level)).
			Msg(message)
	}
}

// persist stores the run and its ledger. Storage failures are logged and do
// not change the outcome of the run.
func (r *Runtime) persist(ctx context.Context, result *agent.Run, runLedger *ledger.Ledger) {
	if err := r.runs.Save(ctx, result); err != nil {
		logging.Warn().Add(logging.RunID(result.ID)).Add(logging.ErrorField(err)).Msg("failed to save run")
	}
	if err := r.ledgers.Append(ctx, runLedger.Entries()...); err != nil {
		logging.Warn().Add(logging.RunID(result.ID)).Add(logging.ErrorField(err)).Msg("failed to save ledger")
	}
}

// DefaultMiddleware builds the shared action middleware for cfg: logging,
// tracing, metrics and, when configured, rate limiting.
func DefaultMiddleware(cfg *domainconfig.HostConfig, tracer trace.Tracer, meter metric.Meter) (*middleware.Registry, error) {
	registry := middleware.NewRegistry()

	if cfg.Limits.ActionsPerSecond > 0 {
		registry.Use("ratelimit", inframw.RateLimit(inframw.RateLimitConfig{
			Scope: inframw.ScopePerRun,
			Rate:  cfg.Limits.ActionsPerSecond,
			Burst: cfg.Limits.Burst,
		}))
	}

	tracing := inframw.DefaultTracingConfig()
	tracing.Tracer = tracer
	registry.Use("tracing", inframw.Tracing(tracing))

	if meter != nil {
		metrics, err := inframw.Metrics(inframw.MetricsConfig{Meter: meter})
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		registry.Use("metrics", metrics)
	}

	registry.Use("logging", inframw.Logging(inframw.LoggingConfig{}))

	logging.Debug().Add(logging.Str("middleware", strings.Join(registry.Names(), ","))).Msg("action middleware installed")
	return registry, nil
}
