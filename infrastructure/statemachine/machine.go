// Package statemachine provides the statekit integration for the run lifecycle.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/ledger"
)

// Context carries run state through the state machine.
type Context struct {
	Run    *agent.Run
	Ledger *ledger.Ledger
}

// NewContext creates a new machine context.
func NewContext(run *agent.Run, ledger *ledger.Ledger) *Context {
	return &Context{
		Run:    run,
		Ledger: ledger,
	}
}

// Event types understood by the run machine.
const (
	EventAct      = "ACT"
	EventObserve  = "OBSERVE"
	EventComplete = "COMPLETE"
	EventFail     = "FAIL"
)

// State IDs as StateID type for statekit.
const (
	stateRunning   statekit.StateID = statekit.StateID(agent.PhaseRunning)
	stateActing    statekit.StateID = statekit.StateID(agent.PhaseActing)
	stateCompleted statekit.StateID = statekit.StateID(agent.PhaseCompleted)
	stateFailed    statekit.StateID = statekit.StateID(agent.PhaseFailed)
)

// NewRunMachine creates the run statechart.
func NewRunMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("run").
		WithInitial(stateRunning).
		WithContext(&Context{}).
		// Register actions
		WithAction("recordTransition", recordTransition).
		WithAction("recordCompletion", recordCompletion).
		WithAction("recordFailure", recordFailure).
		// Register guards
		WithGuard("hasActions", guardHasActions).
		// Define states
		State(stateRunning).
			On(EventAct).Target(stateActing).Guard("hasActions").Do("recordTransition").
			On(EventComplete).Target(stateCompleted).Do("recordCompletion").
			On(EventFail).Target(stateFailed).Do("recordFailure").
			Done().
		State(stateActing).
			On(EventObserve).Target(stateRunning).Do("recordTransition").
			On(EventFail).Target(stateFailed).Do("recordFailure").
			Done().
		State(stateCompleted).
			Final().
			Done().
		State(stateFailed).
			Final().
			Done().
		Build()
}

// PhaseForEvent returns the phase an event leads to.
func PhaseForEvent(eventType statekit.EventType) agent.Phase {
	switch eventType {
	case EventAct:
		return agent.PhaseActing
	case EventObserve:
		return agent.PhaseRunning
	case EventComplete:
		return agent.PhaseCompleted
	case EventFail:
		return agent.PhaseFailed
	default:
		return agent.Phase(eventType)
	}
}
