package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/ledger"
)

// Replay rebuilds runs from their persisted audit ledger.
type Replay struct {
	ledgers ledger.Store
}

// NewReplay creates a new replay engine.
func NewReplay(ledgers ledger.Store) *Replay {
	return &Replay{
		ledgers: ledgers,
	}
}

// ReconstructRun rebuilds a run's state from its ledger.
func (r *Replay) ReconstructRun(ctx context.Context, runID string) (*agent.Run, error) {
	entries, err := r.ledgers.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return applyEntries(runID, entries)
}

// applyEntries folds ledger entries into run state.
func applyEntries(runID string, entries []ledger.Entry) (*agent.Run, error) {
	var run *agent.Run

	for _, e := range entries {
		if e.Type == ledger.EntryRunStarted {
			var d ledger.RunStartedDetails
			if err := e.DecodeDetails(&d); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			run = agent.NewRun(e.RunID, d.Task)
			run.Component = d.Component
			run.ComponentDigest = d.Digest
			run.Workspace = d.Workspace
			run.Attempt = d.Attempt
			run.Step = e.Step
			run.StartTime = e.Timestamp
			continue
		}
		if run == nil {
			continue
		}

		switch e.Type {
		case ledger.EntryStep:
			run.Iterations++
			run.Step = e.Step

		case ledger.EntryPhaseTransition:
			var d ledger.TransitionDetails
			if err := e.DecodeDetails(&d); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			run.Phase = d.ToPhase

		case ledger.EntryActionResult:
			run.ActionsExecuted++

		case ledger.EntryActionError:
			run.ActionsExecuted++
			run.ActionsFailed++

		case ledger.EntryRunCompleted:
			var d ledger.PlanDetails
			if err := e.DecodeDetails(&d); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			run.Complete(agent.CompletePlan{Reason: d.Reason, Outcome: d.Outcome})
			run.EndTime = e.Timestamp

		case ledger.EntryRunFailed:
			var d ledger.FailureDetails
			if err := e.DecodeDetails(&d); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			run.Fail(&agent.RunError{Message: d.Error, Retryable: d.Retryable})
			run.EndTime = e.Timestamp

		// Plans and guest logs are audit only.
		case ledger.EntryPlanContinue, ledger.EntryPlanComplete, ledger.EntryActionCall, ledger.EntryGuestLog:
		}
	}

	if run == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNoEntries, runID)
	}
	return run, nil
}

// Timeline provides a time-based view of a run's ledger.
type Timeline struct {
	entries []ledger.Entry
}

// NewTimeline creates a timeline for a run.
func (r *Replay) NewTimeline(ctx context.Context, runID string) (*Timeline, error) {
	entries, err := r.ledgers.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return &Timeline{entries: entries}, nil
}

// Entries returns the entries in sequence order.
func (tl *Timeline) Entries() []ledger.Entry {
	return tl.entries
}

// Duration returns the time between the first and last entry.
func (tl *Timeline) Duration() time.Duration {
	if len(tl.entries) < 2 {
		return 0
	}
	first := tl.entries[0].Timestamp
	last := tl.entries[len(tl.entries)-1].Timestamp
	return last.Sub(first)
}

// EntriesByType returns entries of a specific type.
func (tl *Timeline) EntriesByType(entryType ledger.EntryType) []ledger.Entry {
	var result []ledger.Entry
	for _, e := range tl.entries {
		if e.Type == entryType {
			result = append(result, e)
		}
	}
	return result
}

// PhaseTransition represents a phase change.
type PhaseTransition struct {
	Step      uint32
	From      agent.Phase
	To        agent.Phase
	Event     string
	Timestamp time.Time
}

// Transitions returns all phase transitions.
func (tl *Timeline) Transitions() []PhaseTransition {
	var transitions []PhaseTransition
	for _, e := range tl.EntriesByType(ledger.EntryPhaseTransition) {
		var d ledger.TransitionDetails
		if err := e.DecodeDetails(&d); err != nil {
			continue
		}
		transitions = append(transitions, PhaseTransition{
			Step:      e.Step,
			From:      d.FromPhase,
			To:        d.ToPhase,
			Event:     d.Event,
			Timestamp: e.Timestamp,
		})
	}
	return transitions
}

// ActionCall represents an action dispatch with its outcome.
type ActionCall struct {
	Step       uint32
	Capability string
	AuditTag   string
	Input      string
	Output     []byte
	Error      string
	Success    bool
	StartTime  time.Time
	Duration   time.Duration
}

// ActionCalls pairs every action call with the result or error that
// follows it. Actions of a batch run sequentially, so the outcome of a call
// is the next result or error entry.
func (tl *Timeline) ActionCalls() []ActionCall {
	var (
		calls   []ActionCall
		pending = -1
	)
	for _, e := range tl.entries {
		switch e.Type {
		case ledger.EntryActionCall:
			var d ledger.ActionCallDetails
			if err := e.DecodeDetails(&d); err != nil {
				continue
			}
			calls = append(calls, ActionCall{
				Step:       e.Step,
				Capability: d.Capability,
				AuditTag:   d.AuditTag,
				Input:      d.Input,
				StartTime:  e.Timestamp,
			})
			pending = len(calls) - 1

		case ledger.EntryActionResult:
			if pending < 0 {
				continue
			}
			var d ledger.ActionResultDetails
			if err := e.DecodeDetails(&d); err == nil {
				calls[pending].Output = d.Output
				calls[pending].Duration = d.Duration
				calls[pending].Success = true
			}
			pending = -1

		case ledger.EntryActionError:
			if pending < 0 {
				continue
			}
			var d ledger.ActionErrorDetails
			if err := e.DecodeDetails(&d); err == nil {
				calls[pending].Error = d.Error
				calls[pending].Duration = e.Timestamp.Sub(calls[pending].StartTime)
			}
			pending = -1
		}
	}
	return calls
}
