package application

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/capability"
	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/infrastructure/provider"
	"github.com/felixgeelhaar/osagent/infrastructure/resource"
	"github.com/felixgeelhaar/osagent/infrastructure/security/sandbox"
)

// Test helpers

type reply struct {
	resp agent.StepResponse
	err  error
}

// scriptedGuest answers steps from a fixed script. Once the script is
// exhausted the last reply repeats.
type scriptedGuest struct {
	replies []reply
	seen    []agent.Observation
	closed  bool
}

func newScriptedGuest(replies ...reply) *scriptedGuest {
	return &scriptedGuest{replies: replies}
}

func (g *scriptedGuest) Step(_ context.Context, _ string, obs agent.Observation) (agent.StepResponse, error) {
	g.seen = append(g.seen, obs)
	i := min(len(g.seen)-1, len(g.replies)-1)
	return g.replies[i].resp, g.replies[i].err
}

func (g *scriptedGuest) Close(context.Context) error {
	g.closed = true
	return nil
}

func complete(reason, outcome string) reply {
	return reply{resp: agent.NewCompleteResponse(reason, outcome)}
}

func act(actions ...capability.PlannedAction) reply {
	return reply{resp: agent.NewContinueResponse("working", actions...)}
}

func action(name, input string) capability.PlannedAction {
	return capability.PlannedAction{Capability: name, Input: input}
}

func newTestWorkspace(t *testing.T) string {
	t.Helper()
	root, err := sandbox.CanonicalRoot(t.TempDir())
	if err != nil {
		t.Fatalf("CanonicalRoot() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello host"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	return root
}

func newTestHostConfig(t *testing.T, allow ...string) *domainconfig.HostConfig {
	t.Helper()
	cfg := domainconfig.Default()
	cfg.WorkspaceRoot = newTestWorkspace(t)
	cfg.AllowedProcCommands = allow
	return &cfg
}

func newTestExecutor(t *testing.T, cfg *domainconfig.HostConfig) *Executor {
	t.Helper()
	table := resource.NewTable()
	t.Cleanup(func() { _ = table.Close() })
	return NewExecutor(ExecutorConfig{
		Root:         cfg.WorkspaceRoot,
		Capabilities: provider.NewSet(cfg, table),
	})
}

func runEngine(t *testing.T, guest agent.Guest, maxSteps int) (*agent.Run, *ledger.Ledger, error) {
	t.Helper()
	cfg := newTestHostConfig(t)
	l := ledger.New("run-1")
	engine := NewEngine(EngineConfig{MaxSteps: maxSteps})
	run, err := engine.Run(context.Background(), Session{
		Guest:    guest,
		Executor: newTestExecutor(t, cfg),
		Ledger:   l,
	}, Request{RunID: "run-1", Task: "list files", Workspace: cfg.WorkspaceRoot})
	return run, l, err
}

// Engine Tests

func TestNewEngine_Defaults(t *testing.T) {
	t.Parallel()

	if got := NewEngine(EngineConfig{}).MaxSteps(); got != DefaultMaxSteps {
		t.Errorf("MaxSteps() = %d, want %d", got, DefaultMaxSteps)
	}
}

func TestEngine_CompletesImmediately(t *testing.T) {
	t.Parallel()

	guest := newScriptedGuest(complete("nothing to do", "ok"))
	run, l, err := runEngine(t, guest, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Phase != agent.PhaseCompleted || run.Reason != "nothing to do" || run.Outcome != "ok" {
		t.Errorf("Run() = %+v, want completed with reason and outcome", run)
	}
	if len(guest.seen) != 1 {
		t.Fatalf("guest saw %d observations, want 1", len(guest.seen))
	}
	first := guest.seen[0]
	if first.Summary != "host bootstrap step 0" || first.Data != "{}" {
		t.Errorf("initial observation = %+v, want bootstrap summary and {}", first)
	}
	if l.LastEntry().Type != ledger.EntryRunCompleted {
		t.Errorf("last ledger entry = %s, want run_completed", l.LastEntry().Type)
	}
}

func TestEngine_ExecutesActionsThenCompletes(t *testing.T) {
	t.Parallel()

	guest := newScriptedGuest(
		act(action(capability.ActionListDir, `{}`), action("fs.unknown", `{}`)),
		complete("listed", "2 entries"),
	)
	run, l, err := runEngine(t, guest, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Step != 1 || run.Iterations != 2 {
		t.Errorf("Step, Iterations = %d, %d, want 1, 2", run.Step, run.Iterations)
	}
	if run.ActionsExecuted != 2 || run.ActionsFailed != 1 {
		t.Errorf("ActionsExecuted, ActionsFailed = %d, %d, want 2, 1", run.ActionsExecuted, run.ActionsFailed)
	}

	second := guest.seen[1]
	if second.Step != 1 || second.Summary != "executed 2 action(s) with 1 failure(s)" {
		t.Errorf("second observation = %+v", second)
	}
	var data struct {
		Actions []capability.ActionReport `json:"actions"`
	}
	if err := json.Unmarshal([]byte(second.Data), &data); err != nil {
		t.Fatalf("observation data is not JSON: %v", err)
	}
	if len(data.Actions) != 2 || !data.Actions[0].Success || data.Actions[1].Success {
		t.Errorf("reports = %+v, want success then failure", data.Actions)
	}
	if got := *data.Actions[1].Error; got != "unsupported capability `fs.unknown`" {
		t.Errorf("report error = %q", got)
	}

	if n := len(l.EntriesByType(ledger.EntryPhaseTransition)); n != 3 {
		t.Errorf("transitions = %d, want 3 (act, observe, complete)", n)
	}
}

func TestEngine_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		replies       []reply
		maxSteps      int
		wantMessage   string
		wantRetryable bool
		wantCause     error
	}{
		{
			name:          "agent error retryable",
			replies:       []reply{{err: &agent.AgentError{Retryable: true, Message: "model overloaded"}}},
			wantMessage:   "agent-core reported error (retryable=true): model overloaded",
			wantRetryable: true,
		},
		{
			name:        "agent error permanent",
			replies:     []reply{{err: &agent.AgentError{Message: "bad task"}}},
			wantMessage: "agent-core reported error (retryable=false): bad task",
		},
		{
			name:        "trap",
			replies:     []reply{{err: agent.ErrGuestTrap}},
			wantMessage: "guest step failed: guest trapped",
			wantCause:   agent.ErrGuestTrap,
		},
		{
			name:        "malformed",
			replies:     []reply{{resp: agent.StepResponse{Type: "pause"}}},
			wantMessage: "guest step failed: malformed step response",
			wantCause:   agent.ErrMalformedResponse,
		},
		{
			name:        "empty continuation",
			replies:     []reply{act()},
			wantMessage: "protocol violation",
			wantCause:   agent.ErrProtocolViolation,
		},
		{
			name:        "step limit",
			replies:     []reply{act(action(capability.ActionListDir, `{}`))},
			maxSteps:    3,
			wantMessage: "planner did not complete within 3 steps (last summary: executed 1 action(s) with 0 failure(s))",
			wantCause:   agent.ErrStepLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run, l, err := runEngine(t, newScriptedGuest(tt.replies...), tt.maxSteps)
			if err == nil {
				t.Fatal("Run() error = nil, want failure")
			}
			if run.Phase != agent.PhaseFailed {
				t.Errorf("Phase = %s, want failed", run.Phase)
			}
			if !strings.HasPrefix(err.Error(), tt.wantMessage) {
				t.Errorf("Run() error = %q, want prefix %q", err, tt.wantMessage)
			}
			if got := agent.IsRetryable(err); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("Run() error = %v, want cause %v", err, tt.wantCause)
			}
			if l.LastEntry().Type != ledger.EntryRunFailed {
				t.Errorf("last ledger entry = %s, want run_failed", l.LastEntry().Type)
			}
		})
	}
}

func TestEngine_InitialObservation(t *testing.T) {
	t.Parallel()

	cfg := newTestHostConfig(t)
	guest := newScriptedGuest(complete("done", ""))
	_, err := NewEngine(EngineConfig{}).Run(context.Background(), Session{
		Guest:    guest,
		Executor: newTestExecutor(t, cfg),
	}, Request{RunID: "run-2", Task: "t", Step: 4, Observation: json.RawMessage(`{"hint":"x"}`)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := guest.seen[0]; got.Step != 4 || got.Summary != "host bootstrap step 4" || got.Data != `{"hint":"x"}` {
		t.Errorf("initial observation = %+v", got)
	}

	_, err = NewEngine(EngineConfig{}).Run(context.Background(), Session{
		Guest:    newScriptedGuest(complete("done", "")),
		Executor: newTestExecutor(t, cfg),
	}, Request{RunID: "run-3", Observation: json.RawMessage(`{not json`)})
	if err == nil {
		t.Error("Run() with invalid observation error = nil, want error")
	}
}

func TestEngine_Cancelled(t *testing.T) {
	t.Parallel()

	cfg := newTestHostConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	guest := newScriptedGuest(complete("done", ""))
	run, err := NewEngine(EngineConfig{}).Run(ctx, Session{
		Guest:    guest,
		Executor: newTestExecutor(t, cfg),
	}, Request{RunID: "run-4", Task: "t"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if run.Phase != agent.PhaseFailed || len(guest.seen) != 0 {
		t.Errorf("Phase = %s, guest calls = %d, want failed without calls", run.Phase, len(guest.seen))
	}
}
