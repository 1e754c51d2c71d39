// Package agent provides the core domain model for driving a sandboxed
// planning guest.
package agent

// Phase is the lifecycle position of a run.
type Phase string

const (
	PhaseRunning   Phase = "running"   // Waiting on the guest
	PhaseActing    Phase = "acting"    // Executing a batch of actions
	PhaseCompleted Phase = "completed" // Guest completed the task
	PhaseFailed    Phase = "failed"    // Fatal error
)

// IsTerminal returns true for completed and failed.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// IsValid returns true if the phase is recognized.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseRunning, PhaseActing, PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	return string(p)
}
