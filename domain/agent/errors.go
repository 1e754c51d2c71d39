package agent

import "errors"

// Domain errors for the agent runtime.
var (
	// ErrMalformedResponse indicates the guest returned an undecodable or inconsistent response.
	ErrMalformedResponse = errors.New("malformed step response")

	// ErrProtocolViolation indicates the guest broke the step contract.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrStepLimitExceeded indicates the run hit its step bound.
	ErrStepLimitExceeded = errors.New("step limit exceeded")

	// ErrGuestTrap indicates the guest aborted while executing.
	ErrGuestTrap = errors.New("guest trapped")

	// ErrRunTerminated indicates an operation was attempted on a terminated run.
	ErrRunTerminated = errors.New("run already terminated")
)

// RunError is the fatal error that ended a run.
type RunError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *RunError) Error() string {
	return e.Message
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err carries a retryable hint.
func IsRetryable(err error) bool {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Retryable
	}
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Retryable
	}
	return false
}
