package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

func TestNewRun(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "list files")

	if run.ID != "run-1" {
		t.Errorf("NewRun().ID = %q, want %q", run.ID, "run-1")
	}
	if run.Phase != PhaseRunning {
		t.Errorf("NewRun().Phase = %q, want %q", run.Phase, PhaseRunning)
	}
	if run.Attempt != 1 {
		t.Errorf("NewRun().Attempt = %d, want 1", run.Attempt)
	}
	if run.StartTime.IsZero() {
		t.Error("NewRun().StartTime is zero, want current time")
	}
}

func TestRun_Complete(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "task")
	run.RecordBatch(3, 1, "executed 3 action(s) with 1 failure(s)")
	run.Complete(CompletePlan{Reason: "done", Outcome: "ok"})

	if run.Phase != PhaseCompleted {
		t.Errorf("Phase = %q, want %q", run.Phase, PhaseCompleted)
	}
	if run.ActionsExecuted != 3 || run.ActionsFailed != 1 {
		t.Errorf("actions = %d/%d, want 3/1", run.ActionsExecuted, run.ActionsFailed)
	}
	if !run.IsTerminal() {
		t.Error("IsTerminal() = false, want true")
	}
	if run.EndTime.IsZero() {
		t.Error("Complete() did not set EndTime")
	}
}

func TestRun_Fail(t *testing.T) {
	t.Parallel()

	run := NewRun("run-1", "task")
	run.Fail(&RunError{Message: "boom", Retryable: true})

	if run.Phase != PhaseFailed {
		t.Errorf("Phase = %q, want %q", run.Phase, PhaseFailed)
	}
	if run.Error != "boom" || !run.Retryable {
		t.Errorf("Fail() = (%q, %v), want (boom, true)", run.Error, run.Retryable)
	}
}

func TestPhase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phase    Phase
		terminal bool
		valid    bool
	}{
		{PhaseRunning, false, true},
		{PhaseActing, false, true},
		{PhaseCompleted, true, true},
		{PhaseFailed, true, true},
		{Phase("paused"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			t.Parallel()
			if got := tt.phase.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.phase.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestStepResponse_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    StepResponse
		wantErr bool
	}{
		{"continue", NewContinueResponse("look", capability.PlannedAction{Capability: "fs.list_dir", Input: "{}"}), false},
		{"complete", NewCompleteResponse("done", "ok"), false},
		{"continue without plan", StepResponse{Type: ResponseContinue}, true},
		{"complete without result", StepResponse{Type: ResponseComplete}, true},
		{"both payloads", StepResponse{Type: ResponseComplete, Complete: &CompletePlan{}, Continue: &ContinuePlan{}}, true},
		{"unknown type", StepResponse{Type: "pause"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.resp.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("Validate() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestAgentError(t *testing.T) {
	t.Parallel()

	err := &AgentError{Retryable: true, Message: "llm unavailable"}
	want := "agent-core reported error (retryable=true): llm unavailable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"agent retryable", &AgentError{Retryable: true}, true},
		{"agent fatal", &AgentError{Retryable: false}, false},
		{"run retryable", &RunError{Retryable: true}, true},
		{"wrapped run", fmt.Errorf("attempt 1: %w", &RunError{Retryable: true}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
