package statemachine

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/ledger"
)

func newInterpreter(t *testing.T) (*Interpreter, *agent.Run, *ledger.Ledger) {
	t.Helper()

	machine, err := NewRunMachine()
	if err != nil {
		t.Fatalf("NewRunMachine() error = %v", err)
	}
	run := agent.NewRun("test-run", "list files")
	ledg := ledger.New("test-run")
	interp := NewInterpreter(machine, NewContext(run, ledg))
	interp.Start()
	return interp, run, ledg
}

func TestNewRunMachine(t *testing.T) {
	t.Parallel()

	machine, err := NewRunMachine()
	if err != nil {
		t.Fatalf("NewRunMachine() error = %v", err)
	}
	if machine == nil {
		t.Fatal("NewRunMachine() returned nil machine")
	}
}

func TestPhaseForEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event    statekit.EventType
		expected agent.Phase
	}{
		{EventAct, agent.PhaseActing},
		{EventObserve, agent.PhaseRunning},
		{EventComplete, agent.PhaseCompleted},
		{EventFail, agent.PhaseFailed},
		{"custom", agent.Phase("custom")},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			t.Parallel()

			if got := PhaseForEvent(tt.event); got != tt.expected {
				t.Errorf("PhaseForEvent(%s) = %s, want %s", tt.event, got, tt.expected)
			}
		})
	}
}

func TestInterpreter_Start(t *testing.T) {
	t.Parallel()

	interp, run, _ := newInterpreter(t)

	if interp.Phase() != agent.PhaseRunning {
		t.Errorf("Phase() = %s, want running", interp.Phase())
	}
	if run.Phase != agent.PhaseRunning {
		t.Errorf("run.Phase = %s, want running", run.Phase)
	}
	if interp.IsTerminal() {
		t.Error("IsTerminal() = true after start")
	}
	if !interp.Matches("running") {
		t.Error("Matches(running) = false")
	}
}

func TestInterpreter_ActObserveComplete(t *testing.T) {
	t.Parallel()

	interp, run, ledg := newInterpreter(t)

	if err := interp.Act(2); err != nil {
		t.Fatalf("Act() error = %v", err)
	}
	if run.Phase != agent.PhaseActing {
		t.Errorf("run.Phase = %s, want acting", run.Phase)
	}
	if err := interp.Observe(); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if err := interp.Complete(agent.CompletePlan{Reason: "done", Outcome: "ok"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if !interp.IsTerminal() || run.Phase != agent.PhaseCompleted {
		t.Errorf("phase = %s terminal = %v, want completed terminal", run.Phase, interp.IsTerminal())
	}
	if run.Outcome != "ok" || run.EndTime.IsZero() {
		t.Errorf("run = %+v, want outcome ok with end time", run)
	}

	transitions := ledg.EntriesByType(ledger.EntryPhaseTransition)
	if len(transitions) != 3 {
		t.Fatalf("transition entries = %d, want 3", len(transitions))
	}
	var td ledger.TransitionDetails
	if err := transitions[0].DecodeDetails(&td); err != nil {
		t.Fatal(err)
	}
	if td.FromPhase != agent.PhaseRunning || td.ToPhase != agent.PhaseActing || td.Event != EventAct {
		t.Errorf("first transition = %+v, want running -> acting on ACT", td)
	}
	if len(ledg.EntriesByType(ledger.EntryRunCompleted)) != 1 {
		t.Error("missing run_completed entry")
	}
}

func TestInterpreter_ActRequiresActions(t *testing.T) {
	t.Parallel()

	interp, run, _ := newInterpreter(t)

	err := interp.Act(0)
	if !errors.Is(err, agent.ErrProtocolViolation) {
		t.Fatalf("Act(0) error = %v, want protocol violation", err)
	}
	if interp.Phase() != agent.PhaseRunning || run.Phase != agent.PhaseRunning {
		t.Errorf("phase = %s, want running after rejected ACT", interp.Phase())
	}
}

func TestInterpreter_Fail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*Interpreter) error
	}{
		{name: "from running", setup: func(*Interpreter) error { return nil }},
		{name: "from acting", setup: func(i *Interpreter) error { return i.Act(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			interp, run, ledg := newInterpreter(t)
			if err := tt.setup(interp); err != nil {
				t.Fatal(err)
			}
			if err := interp.Fail(&agent.RunError{Message: "boom", Retryable: true}); err != nil {
				t.Fatalf("Fail() error = %v", err)
			}
			if run.Phase != agent.PhaseFailed || run.Error != "boom" || !run.Retryable {
				t.Errorf("run = %+v, want failed boom retryable", run)
			}
			if len(ledg.EntriesByType(ledger.EntryRunFailed)) != 1 {
				t.Error("missing run_failed entry")
			}
		})
	}
}

func TestInterpreter_RejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	t.Run("observe while running", func(t *testing.T) {
		t.Parallel()
		interp, _, _ := newInterpreter(t)
		if err := interp.Observe(); err == nil {
			t.Error("Observe() error = nil, want rejection")
		}
	})

	t.Run("complete while acting", func(t *testing.T) {
		t.Parallel()
		interp, _, _ := newInterpreter(t)
		_ = interp.Act(1)
		if err := interp.Complete(agent.CompletePlan{}); err == nil {
			t.Error("Complete() error = nil, want rejection")
		}
	})

	t.Run("after terminal", func(t *testing.T) {
		t.Parallel()
		interp, _, _ := newInterpreter(t)
		_ = interp.Complete(agent.CompletePlan{Reason: "done"})
		if err := interp.Fail(&agent.RunError{Message: "late"}); !errors.Is(err, agent.ErrRunTerminated) {
			t.Errorf("Fail() after completion error = %v, want ErrRunTerminated", err)
		}
	})
}
