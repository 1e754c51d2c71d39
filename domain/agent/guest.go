package agent

import "context"

// Guest is an instantiated planning component. Step returns an *AgentError
// when the guest itself reports a failure.
type Guest interface {
	Step(ctx context.Context, task string, obs Observation) (StepResponse, error)
	Close(ctx context.Context) error
}
