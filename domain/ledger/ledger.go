package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// Ledger provides an append-only record of everything that happened during
// a run.
type Ledger struct {
	runID   string
	entries []Entry
	nextSeq uint64
	mu      sync.RWMutex
}

// New creates a new ledger for the given run.
func New(runID string) *Ledger {
	return &Ledger{
		runID:   runID,
		entries: make([]Entry, 0),
	}
}

// Append adds an entry to the ledger and returns it with its sequence
// number assigned.
func (l *Ledger) Append(entry Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.RunID = l.runID
	entry.Seq = l.nextSeq
	l.nextSeq++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	l.entries = append(l.entries, entry)
	return entry
}

// Entries returns a copy of all entries.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// EntriesByType returns entries filtered by type.
func (l *Ledger) EntriesByType(entryType EntryType) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var filtered []Entry
	for _, e := range l.entries {
		if e.Type == entryType {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// LastEntry returns the most recent entry, or nil if empty.
func (l *Ledger) LastEntry() *Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.entries) == 0 {
		return nil
	}
	entry := l.entries[len(l.entries)-1]
	return &entry
}

// Count returns the number of entries.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// RunID returns the associated run ID.
func (l *Ledger) RunID() string {
	return l.runID
}

// RecordRunStarted records the start of a run.
func (l *Ledger) RecordRunStarted(run *agent.Run) {
	l.Append(NewEntry(EntryRunStarted, l.runID, agent.PhaseRunning, run.Step, RunStartedDetails{
		Task:      run.Task,
		Component: run.Component,
		Digest:    run.ComponentDigest,
		Workspace: run.Workspace,
		Attempt:   run.Attempt,
	}))
}

// RecordRunCompleted records the completion of a run.
func (l *Ledger) RecordRunCompleted(step uint32, plan agent.CompletePlan) {
	l.Append(NewEntry(EntryRunCompleted, l.runID, agent.PhaseCompleted, step, PlanDetails{
		Reason:  plan.Reason,
		Outcome: plan.Outcome,
	}))
}

// RecordRunFailed records the failure of a run.
func (l *Ledger) RecordRunFailed(step uint32, err *agent.RunError) {
	l.Append(NewEntry(EntryRunFailed, l.runID, agent.PhaseFailed, step, FailureDetails{
		Error:     err.Message,
		Retryable: err.Retryable,
	}))
}

// RecordTransition records a phase transition.
func (l *Ledger) RecordTransition(step uint32, from, to agent.Phase, event string) {
	l.Append(NewEntry(EntryPhaseTransition, l.runID, to, step, TransitionDetails{
		FromPhase: from,
		ToPhase:   to,
		Event:     event,
	}))
}

// RecordStep records the observation handed to the guest.
func (l *Ledger) RecordStep(obs agent.Observation) {
	l.Append(NewEntry(EntryStep, l.runID, agent.PhaseRunning, obs.Step, PlanDetails{
		Observation: obs.Summary,
	}))
}

// RecordPlan records the guest's step response.
func (l *Ledger) RecordPlan(step uint32, resp agent.StepResponse) {
	switch resp.Type {
	case agent.ResponseContinue:
		details := PlanDetails{}
		if resp.Continue != nil {
			details.Thought = resp.Continue.Thought
			for _, a := range resp.Continue.Actions {
				details.Actions = append(details.Actions, a.Capability)
			}
		}
		l.Append(NewEntry(EntryPlanContinue, l.runID, agent.PhaseRunning, step, details))
	case agent.ResponseComplete:
		details := PlanDetails{}
		if resp.Complete != nil {
			details.Reason = resp.Complete.Reason
			details.Outcome = resp.Complete.Outcome
		}
		l.Append(NewEntry(EntryPlanComplete, l.runID, agent.PhaseRunning, step, details))
	}
}

// RecordActionCall records the dispatch of an action.
func (l *Ledger) RecordActionCall(step uint32, capability, auditTag, input string) {
	l.Append(NewEntry(EntryActionCall, l.runID, agent.PhaseActing, step, ActionCallDetails{
		Capability: capability,
		AuditTag:   auditTag,
		Input:      input,
	}))
}

// RecordActionResult records a successful action.
func (l *Ledger) RecordActionResult(step uint32, capability, auditTag string, output []byte, duration time.Duration) {
	l.Append(NewEntry(EntryActionResult, l.runID, agent.PhaseActing, step, ActionResultDetails{
		Capability: capability,
		AuditTag:   auditTag,
		Output:     output,
		Duration:   duration,
	}))
}

// RecordActionError records a failed action.
func (l *Ledger) RecordActionError(step uint32, capability, auditTag string, err error) {
	l.Append(NewEntry(EntryActionError, l.runID, agent.PhaseActing, step, ActionErrorDetails{
		Capability: capability,
		AuditTag:   auditTag,
		Error:      err.Error(),
	}))
}

// RecordGuestLog records a log line emitted by the guest.
func (l *Ledger) RecordGuestLog(step uint32, level, message string) {
	l.Append(NewEntry(EntryGuestLog, l.runID, agent.PhaseRunning, step, GuestLogDetails{
		Level:   level,
		Message: message,
	}))
}
