package statemachine

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// Interpreter wraps the statekit interpreter with run-specific functionality.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for the run state machine.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	// Update the context reference in the machine
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start initializes the interpreter and enters the running phase.
func (i *Interpreter) Start() {
	i.interp.Start()
	i.ctx.Run.Phase = i.Phase()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// Phase returns the current phase.
func (i *Interpreter) Phase() agent.Phase {
	state := i.interp.State()
	return agent.Phase(state.Value)
}

// Act enters the acting phase for a batch of n actions. An empty batch is
// a protocol violation and leaves the phase unchanged.
func (i *Interpreter) Act(n int) error {
	if err := i.send(EventAct, ActPayload{Actions: n}, agent.PhaseActing); err != nil {
		if n == 0 {
			return fmt.Errorf("%w: continue response carried no actions", agent.ErrProtocolViolation)
		}
		return err
	}
	return nil
}

// Observe returns to the running phase after a batch.
func (i *Interpreter) Observe() error {
	return i.send(EventObserve, nil, agent.PhaseRunning)
}

// Complete ends the run successfully.
func (i *Interpreter) Complete(plan agent.CompletePlan) error {
	return i.send(EventComplete, CompletePayload{Plan: plan}, agent.PhaseCompleted)
}

// Fail ends the run with err.
func (i *Interpreter) Fail(err *agent.RunError) error {
	return i.send(EventFail, FailPayload{Err: err}, agent.PhaseFailed)
}

func (i *Interpreter) send(eventType statekit.EventType, payload any, want agent.Phase) error {
	if i.IsTerminal() {
		return fmt.Errorf("%w: %s in phase %s", agent.ErrRunTerminated, eventType, i.Phase())
	}
	from := i.Phase()
	i.interp.Send(statekit.Event{Type: eventType, Payload: payload})
	if got := i.Phase(); got != want {
		return fmt.Errorf("event %s not accepted in phase %s", eventType, from)
	}
	return nil
}

// IsTerminal returns true if the interpreter is in a terminal state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Matches checks if the current state matches the given state ID.
func (i *Interpreter) Matches(stateID string) bool {
	return i.interp.Matches(statekit.StateID(stateID))
}

// Context returns the interpreter context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}
