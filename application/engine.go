// Package application provides the orchestration services of the host
// runtime.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
	"github.com/felixgeelhaar/osagent/infrastructure/observability"
	"github.com/felixgeelhaar/osagent/infrastructure/statemachine"
)

// DefaultMaxSteps bounds the orchestration loop when no bound is configured.
const DefaultMaxSteps = 8

// Engine drives a guest through the bounded step loop.
type Engine struct {
	maxSteps int
	tracer   trace.Tracer
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	// MaxSteps bounds the number of guest calls per run.
	MaxSteps int
	// Tracer opens the run and step spans. Nil disables tracing.
	Tracer trace.Tracer
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) *Engine {
	e := &Engine{
		maxSteps: config.MaxSteps,
		tracer:   config.Tracer,
	}
	if e.maxSteps <= 0 {
		e.maxSteps = DefaultMaxSteps
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("")
	}
	return e
}

// MaxSteps returns the step bound.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// Session is everything one run needs from its instantiation.
type Session struct {
	Guest    agent.Guest
	Executor *Executor
	Ledger   *ledger.Ledger
}

// Request describes the run to perform.
type Request struct {
	RunID string
	Task  string
	// Observation is the initial observation data. It must be valid JSON;
	// empty means {}.
	Observation json.RawMessage
	// Step is the initial step number.
	Step uint32

	Component       string
	ComponentDigest string
	Workspace       string
	Attempt         int
}

// Run executes the step loop until the guest completes, the run fails or
// the step bound is reached. A failed run is returned together with its
// *agent.RunError.
func (e *Engine) Run(ctx context.Context, session Session, req Request) (*agent.Run, error) {
	if session.Guest == nil || session.Executor == nil {
		return nil, errors.New("session requires a guest and an executor")
	}
	data := req.Observation
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: initial observation is not valid JSON", agent.ErrMalformedResponse)
	}

	run := agent.NewRun(req.RunID, req.Task)
	run.Component = req.Component
	run.ComponentDigest = req.ComponentDigest
	run.Workspace = req.Workspace
	run.Step = req.Step
	if req.Attempt > 0 {
		run.Attempt = req.Attempt
	}

	runLedger := session.Ledger
	if runLedger == nil {
		runLedger = ledger.New(req.RunID)
	}

	machine, err := statemachine.NewRunMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	interp := statemachine.NewInterpreter(machine, statemachine.NewContext(run, runLedger))
	interp.Start()
	defer interp.Stop()

	ctx, runSpan := observability.StartRunSpan(ctx, e.tracer, run)

	logging.Info().
		Add(logging.RunID(run.ID)).
		Add(logging.Task(run.Task)).
		Add(logging.Attempt(run.Attempt)).
		Msg("run started")
	runLedger.RecordRunStarted(run)

	obs := agent.Observation{
		Step:    req.Step,
		Summary: fmt.Sprintf("host bootstrap step %d", req.Step),
		Data:    string(data),
	}

	for i := 0; i < e.maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return e.fail(interp, runSpan, &agent.RunError{
				Message: fmt.Sprintf("run cancelled: %v", err),
				Cause:   err,
			})
		}

		run.Iterations++
		runLedger.RecordStep(obs)
		logging.Debug().
			Add(logging.RunID(run.ID)).
			Add(logging.Step(obs.Step)).
			Add(logging.Summary(obs.Summary)).
			Msg("step")

		next, done, err := e.step(ctx, session, interp, obs)
		if err != nil {
			return e.fail(interp, runSpan, err)
		}
		if done {
			observability.EndSpan(runSpan, nil)
			logging.Info().
				Add(logging.RunID(run.ID)).
				Add(logging.Step(run.Step)).
				Add(logging.Reason(run.Reason)).
				Add(logging.Duration(run.Duration())).
				Msg("run completed")
			return run, nil
		}
		obs = next
		run.Step = obs.Step
	}

	return e.fail(interp, runSpan, &agent.RunError{
		Message: fmt.Sprintf("planner did not complete within %d steps (last summary: %s)", e.maxSteps, obs.Summary),
		Cause:   agent.ErrStepLimitExceeded,
	})
}

// step performs one guest call and, for a continuation, the action batch.
// It returns the next observation, or done when the guest completed.
func (e *Engine) step(ctx context.Context, session Session, interp *statemachine.Interpreter, obs agent.Observation) (agent.Observation, bool, *agent.RunError) {
	run := interp.Context().Run
	stepCtx, span := observability.StartStepSpan(ctx, e.tracer, run.ID, obs.Step)

	resp, err := session.Guest.Step(stepCtx, run.Task, obs)
	if err == nil {
		err = resp.Validate()
	}
	if err != nil {
		runErr := guestFailure(err)
		observability.EndSpan(span, runErr)
		return agent.Observation{}, false, runErr
	}
	interp.Context().Ledger.RecordPlan(obs.Step, resp)

	if resp.Type == agent.ResponseComplete {
		if err := interp.Complete(*resp.Complete); err != nil {
			runErr := &agent.RunError{Message: err.Error(), Cause: err}
			observability.EndSpan(span, runErr)
			return agent.Observation{}, false, runErr
		}
		observability.EndSpan(span, nil)
		return agent.Observation{}, true, nil
	}

	batch := resp.Continue.Actions
	if err := interp.Act(len(batch)); err != nil {
		runErr := &agent.RunError{Message: err.Error(), Cause: err}
		observability.EndSpan(span, runErr)
		return agent.Observation{}, false, runErr
	}

	reports := session.Executor.Execute(stepCtx, run.ID, obs.Step, batch)
	failures := countFailures(reports)
	summary := fmt.Sprintf("executed %d action(s) with %d failure(s)", len(reports), failures)
	data, err := json.Marshal(struct {
		Actions []capability.ActionReport `json:"actions"`
	}{Actions: reports})
	if err != nil {
		runErr := &agent.RunError{Message: fmt.Sprintf("failed to encode observation: %v", err), Cause: err}
		observability.EndSpan(span, runErr)
		return agent.Observation{}, false, runErr
	}
	run.RecordBatch(len(reports), failures, summary)

	if err := interp.Observe(); err != nil {
		runErr := &agent.RunError{Message: err.Error(), Cause: err}
		observability.EndSpan(span, runErr)
		return agent.Observation{}, false, runErr
	}
	observability.EndSpan(span, nil)

	return agent.Observation{
		Step:    obs.Step + 1,
		Summary: summary,
		Data:    string(data),
	}, false, nil
}

// fail moves the run to the failed phase and returns it with its error.
func (e *Engine) fail(interp *statemachine.Interpreter, span trace.Span, runErr *agent.RunError) (*agent.Run, error) {
	run := interp.Context().Run
	if err := interp.Fail(runErr); err != nil {
		// The machine already reached a final state; keep the run consistent.
		run.Fail(runErr)
	}
	observability.EndSpan(span, runErr)

	logging.Error().
		Add(logging.RunID(run.ID)).
		Add(logging.Step(run.Step)).
		Add(logging.Retryable(runErr.Retryable)).
		Add(logging.ErrorField(runErr)).
		Msg("run failed")
	return run, runErr
}

// guestFailure converts a guest step error into the fatal run error. Only a
// failure the guest reports itself may carry a retryable hint.
func guestFailure(err error) *agent.RunError {
	var agentErr *agent.AgentError
	if errors.As(err, &agentErr) {
		return &agent.RunError{Message: agentErr.Error(), Retryable: agentErr.Retryable, Cause: err}
	}
	return &agent.RunError{Message: fmt.Sprintf("guest step failed: %v", err), Cause: err}
}

func countFailures(reports []capability.ActionReport) int {
	n := 0
	for _, r := range reports {
		if !r.Success {
			n++
		}
	}
	return n
}
