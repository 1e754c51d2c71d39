// Package ledger provides domain models for the audit trail of a run.
package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// EntryType classifies the type of ledger entry.
type EntryType string

const (
	EntryRunStarted      EntryType = "run_started"
	EntryRunCompleted    EntryType = "run_completed"
	EntryRunFailed       EntryType = "run_failed"
	EntryPhaseTransition EntryType = "phase_transition"
	EntryStep            EntryType = "step"
	EntryPlanContinue    EntryType = "plan_continue"
	EntryPlanComplete    EntryType = "plan_complete"
	EntryActionCall      EntryType = "action_call"
	EntryActionResult    EntryType = "action_result"
	EntryActionError     EntryType = "action_error"
	EntryGuestLog        EntryType = "guest_log"
)

// Entry represents a single record in the ledger. Seq orders entries within
// a run.
type Entry struct {
	ID        string          `json:"id" cbor:"1,keyasint"`
	Seq       uint64          `json:"seq" cbor:"2,keyasint"`
	Timestamp time.Time       `json:"timestamp" cbor:"3,keyasint"`
	Type      EntryType       `json:"type" cbor:"4,keyasint"`
	RunID     string          `json:"run_id" cbor:"5,keyasint"`
	Phase     agent.Phase     `json:"phase,omitempty" cbor:"6,keyasint,omitempty"`
	Step      uint32          `json:"step" cbor:"7,keyasint"`
	Details   json.RawMessage `json:"details,omitempty" cbor:"8,keyasint,omitempty"`
}

// RunStartedDetails contains details for run started entries.
type RunStartedDetails struct {
	Task      string `json:"task"`
	Component string `json:"component"`
	Digest    string `json:"digest,omitempty"`
	Workspace string `json:"workspace"`
	Attempt   int    `json:"attempt"`
}

// TransitionDetails contains details for phase transition entries.
type TransitionDetails struct {
	FromPhase agent.Phase `json:"from_phase"`
	ToPhase   agent.Phase `json:"to_phase"`
	Event     string      `json:"event"`
}

// PlanDetails contains details for plan entries.
type PlanDetails struct {
	Thought     string   `json:"thought,omitempty"`
	Actions     []string `json:"actions,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Outcome     string   `json:"outcome,omitempty"`
	Observation string   `json:"observation,omitempty"`
}

// ActionCallDetails contains details for action call entries.
type ActionCallDetails struct {
	Capability string `json:"capability"`
	AuditTag   string `json:"audit_tag,omitempty"`
	Input      string `json:"input"`
}

// ActionResultDetails contains details for action result entries.
type ActionResultDetails struct {
	Capability string          `json:"capability"`
	AuditTag   string          `json:"audit_tag,omitempty"`
	Output     json.RawMessage `json:"output"`
	Duration   time.Duration   `json:"duration"`
}

// ActionErrorDetails contains details for action error entries.
type ActionErrorDetails struct {
	Capability string `json:"capability"`
	AuditTag   string `json:"audit_tag,omitempty"`
	Error      string `json:"error"`
}

// FailureDetails contains details for run failed entries.
type FailureDetails struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// GuestLogDetails contains a line emitted by the guest.
type GuestLogDetails struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewEntry creates a new ledger entry.
func NewEntry(entryType EntryType, runID string, phase agent.Phase, step uint32, details any) Entry {
	var detailsJSON json.RawMessage
	if details != nil {
		detailsJSON, _ = json.Marshal(details)
	}

	return Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      entryType,
		RunID:     runID,
		Phase:     phase,
		Step:      step,
		Details:   detailsJSON,
	}
}

// DecodeDetails unmarshals the entry details into the given struct.
func (e Entry) DecodeDetails(v any) error {
	if e.Details == nil {
		return nil
	}
	return json.Unmarshal(e.Details, v)
}
