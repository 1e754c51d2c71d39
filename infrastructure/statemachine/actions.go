package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// ActPayload accompanies ACT.
type ActPayload struct {
	Actions int
}

// CompletePayload accompanies COMPLETE.
type CompletePayload struct {
	Plan agent.CompletePlan
}

// FailPayload accompanies FAIL.
type FailPayload struct {
	Err *agent.RunError
}

// recordTransition records the phase transition in the ledger and on the run.
// In statekit, actions receive a pointer to the context. Since our context is *Context,
// actions receive **Context.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Run == nil {
		return
	}

	c := *ctx
	from := c.Run.Phase
	to := PhaseForEvent(event.Type)

	if c.Ledger != nil {
		c.Ledger.RecordTransition(c.Run.Step, from, to, string(event.Type))
	}
	logging.Debug().
		Add(logging.RunID(c.Run.ID)).
		Add(logging.Step(c.Run.Step)).
		Add(logging.FromPhase(from)).
		Add(logging.ToPhase(to)).
		Msg("phase transition")

	c.Run.Phase = to
}

// recordCompletion records the transition and finalizes the run with the
// guest's result.
func recordCompletion(ctx **Context, event statekit.Event) {
	recordTransition(ctx, event)
	if ctx == nil || *ctx == nil || (*ctx).Run == nil {
		return
	}
	c := *ctx
	payload, _ := event.Payload.(CompletePayload)
	c.Run.Complete(payload.Plan)
	if c.Ledger != nil {
		c.Ledger.RecordRunCompleted(c.Run.Step, payload.Plan)
	}
}

// recordFailure records the transition and finalizes the run with a fatal
// error.
func recordFailure(ctx **Context, event statekit.Event) {
	recordTransition(ctx, event)
	if ctx == nil || *ctx == nil || (*ctx).Run == nil {
		return
	}
	c := *ctx
	payload, _ := event.Payload.(FailPayload)
	if payload.Err == nil {
		payload.Err = &agent.RunError{Message: "run failed"}
	}
	c.Run.Fail(payload.Err)
	if c.Ledger != nil {
		c.Ledger.RecordRunFailed(c.Run.Step, payload.Err)
	}
}
