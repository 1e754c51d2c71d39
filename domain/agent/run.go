package agent

import (
	"time"
)

// RunState is the orchestrator state - exactly one payload matches Phase.
type RunState struct {
	Phase     Phase
	Running   *Running
	Completed *CompletePlan
	Failed    *RunError
}

// Running carries the state of an active run.
type Running struct {
	Step        uint32
	Observation Observation
}

// Run is a single execution of a guest against a task.
// It is the aggregate root for the agent domain.
type Run struct {
	ID              string    `json:"id"`
	Task            string    `json:"task"`
	Component       string    `json:"component"`
	ComponentDigest string    `json:"component_digest,omitempty"`
	Workspace       string    `json:"workspace"`
	Phase           Phase     `json:"phase"`
	Step            uint32    `json:"step"`
	Iterations      int       `json:"iterations"`
	ActionsExecuted int       `json:"actions_executed"`
	ActionsFailed   int       `json:"actions_failed"`
	LastSummary     string    `json:"last_summary,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Outcome         string    `json:"outcome,omitempty"`
	Error           string    `json:"error,omitempty"`
	Retryable       bool      `json:"retryable,omitempty"`
	Attempt         int       `json:"attempt"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitempty"`
}

// NewRun creates a running run.
func NewRun(id, task string) *Run {
	return &Run{
		ID:        id,
		Task:      task,
		Phase:     PhaseRunning,
		Attempt:   1,
		StartTime: time.Now(),
	}
}

// RecordBatch accounts for one executed action batch.
func (r *Run) RecordBatch(executed, failed int, summary string) {
	r.ActionsExecuted += executed
	r.ActionsFailed += failed
	r.LastSummary = summary
}

// Complete marks the run as completed.
func (r *Run) Complete(plan CompletePlan) {
	r.Phase = PhaseCompleted
	r.Reason = plan.Reason
	r.Outcome = plan.Outcome
	r.EndTime = time.Now()
}

// Fail marks the run as failed.
func (r *Run) Fail(err *RunError) {
	r.Phase = PhaseFailed
	r.Error = err.Message
	r.Retryable = err.Retryable
	r.EndTime = time.Now()
}

// IsTerminal returns true if the run has reached a terminal phase.
func (r *Run) IsTerminal() bool {
	return r.Phase.IsTerminal()
}

// Duration returns the duration of the run.
func (r *Run) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}
