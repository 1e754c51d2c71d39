package agent

import (
	"fmt"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

// Observation is what the guest sees at the start of a step. Data is JSON
// text.
type Observation struct {
	Step    uint32 `json:"step"`
	Summary string `json:"summary"`
	Data    string `json:"data"`
}

// ResponseType identifies the kind of step response.
type ResponseType string

const (
	ResponseContinue ResponseType = "continue"
	ResponseComplete ResponseType = "complete"
)

// StepResponse is the guest's answer to a step - exactly one payload is set.
type StepResponse struct {
	Type     ResponseType  `json:"type"`
	Continue *ContinuePlan `json:"continue,omitempty"`
	Complete *CompletePlan `json:"complete,omitempty"`
}

// ContinuePlan asks the host to execute actions and call back.
type ContinuePlan struct {
	Thought string                     `json:"thought"`
	Actions []capability.PlannedAction `json:"actions"`
}

// CompletePlan ends the run.
type CompletePlan struct {
	Reason  string `json:"reason"`
	Outcome string `json:"outcome"`
}

// NewContinueResponse creates a continuation.
func NewContinueResponse(thought string, actions ...capability.PlannedAction) StepResponse {
	return StepResponse{
		Type:     ResponseContinue,
		Continue: &ContinuePlan{Thought: thought, Actions: actions},
	}
}

// NewCompleteResponse creates a completion.
func NewCompleteResponse(reason, outcome string) StepResponse {
	return StepResponse{
		Type:     ResponseComplete,
		Complete: &CompletePlan{Reason: reason, Outcome: outcome},
	}
}

// Validate checks that the payload matches the type.
func (r StepResponse) Validate() error {
	switch r.Type {
	case ResponseContinue:
		if r.Continue == nil || r.Complete != nil {
			return fmt.Errorf("%w: continue response must carry only a plan", ErrMalformedResponse)
		}
	case ResponseComplete:
		if r.Complete == nil || r.Continue != nil {
			return fmt.Errorf("%w: complete response must carry only a result", ErrMalformedResponse)
		}
	default:
		return fmt.Errorf("%w: unknown response type %q", ErrMalformedResponse, r.Type)
	}
	return nil
}

// AgentError is a failure reported by the guest itself.
type AgentError struct {
	Retryable bool   `json:"retryable"`
	Message   string `json:"message"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent-core reported error (retryable=%v): %s", e.Retryable, e.Message)
}
