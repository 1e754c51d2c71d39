package hostcall

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/infrastructure/provider"
	"github.com/felixgeelhaar/osagent/infrastructure/resource"
	"github.com/felixgeelhaar/osagent/infrastructure/security/sandbox"
)

func newDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()

	root, err := sandbox.CanonicalRoot(t.TempDir())
	if err != nil {
		t.Fatalf("CanonicalRoot() error = %v", err)
	}
	table := resource.NewTable()
	t.Cleanup(func() { _ = table.Close() })
	cfg := &config.HostConfig{WorkspaceRoot: root}
	return New(provider.NewSet(cfg, table)), root
}

func call(t *testing.T, d *Dispatcher, req string) Response {
	t.Helper()

	var resp Response
	if err := json.Unmarshal(d.Handle(context.Background(), []byte(req)), &resp); err != nil {
		t.Fatalf("Handle() returned invalid JSON: %v", err)
	}
	return resp
}

func TestDispatcher_FileRoundTrip(t *testing.T) {
	t.Parallel()

	d, root := newDispatcher(t)
	if err := os.WriteFile(filepath.Join(root, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws := call(t, d, `{"op":"fs.open-workspace"}`)
	if ws.Error != nil {
		t.Fatalf("fs.open-workspace error = %v", ws.Error)
	}

	file := call(t, d, `{"op":"fs.open-file","args":{"dir":`+string(ws.OK)+`,"path":"note.txt","options":{"read":true}}}`)
	if file.Error != nil {
		t.Fatalf("fs.open-file error = %v", file.Error)
	}

	text := call(t, d, `{"op":"fs.file.read-to-string","args":{"file":`+string(file.OK)+`,"max_bytes":16}}`)
	if text.Error != nil || string(text.OK) != `"hello"` {
		t.Errorf("fs.file.read-to-string = %s, %v, want \"hello\"", text.OK, text.Error)
	}

	closed := call(t, d, `{"op":"fs.file.close","args":{"file":`+string(file.OK)+`}}`)
	if closed.Error != nil || string(closed.OK) != `{}` {
		t.Errorf("fs.file.close = %s, %v, want {}", closed.OK, closed.Error)
	}

	stale := call(t, d, `{"op":"fs.file.flush","args":{"file":`+string(file.OK)+`}}`)
	if stale.Error == nil || stale.Error.Kind != capability.KindInvalidArgument {
		t.Errorf("fs.file.flush on closed handle error = %v, want invalid-argument", stale.Error)
	}
}

func TestDispatcher_Errors(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t)

	tests := []struct {
		name     string
		req      string
		wantKind capability.Kind
		wantMsg  string
	}{
		{name: "unknown op", req: `{"op":"fs.format-disk"}`, wantKind: capability.KindInvalidArgument, wantMsg: "unknown host call"},
		{name: "malformed envelope", req: `not json`, wantKind: capability.KindInvalidArgument, wantMsg: "malformed host call"},
		{name: "unknown field", req: `{"op":"fs.list-dir","args":{"dir":1,"extra":true}}`, wantKind: capability.KindInvalidArgument, wantMsg: "invalid arguments"},
		{name: "denied spawn", req: `{"op":"proc.spawn","args":{"command":"rm"}}`, wantKind: capability.KindDenied, wantMsg: "command `rm` is not allowed"},
		{name: "denied browser", req: `{"op":"browser.open-session","args":{"headless":true}}`, wantKind: capability.KindDenied, wantMsg: "browser capability is disabled"},
		{name: "denied llm", req: `{"op":"llm.complete","args":{"messages":[]}}`, wantKind: capability.KindDenied, wantMsg: "llm capability is not implemented"},
		{name: "denied policy", req: `{"op":"policy.describe"}`, wantKind: capability.KindDenied, wantMsg: "policy capability is not implemented"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, d, tt.req)
			if resp.Error == nil {
				t.Fatalf("Handle(%s) error = nil, want %s", tt.req, tt.wantKind)
			}
			if resp.Error.Kind != tt.wantKind {
				t.Errorf("Handle(%s) kind = %q, want %q", tt.req, resp.Error.Kind, tt.wantKind)
			}
			if !strings.Contains(resp.Error.Message, tt.wantMsg) {
				t.Errorf("Handle(%s) message = %q, want containing %q", tt.req, resp.Error.Message, tt.wantMsg)
			}
			if resp.OK != nil {
				t.Errorf("Handle(%s) ok = %s, want absent", tt.req, resp.OK)
			}
		})
	}
}

func TestDispatcher_Ops(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t)
	ops := d.Ops()

	for _, want := range []string{
		"fs.open-workspace", "fs.dir.close", "fs.file.set-len",
		"proc.spawn", "proc.process.wait",
		"browser.session.goto", "input.key-sequence",
		"llm.call-tools", "policy.log-event",
	} {
		if !slices.Contains(ops, want) {
			t.Errorf("Ops() missing %q", want)
		}
	}
	if !slices.IsSorted(ops) {
		t.Error("Ops() is not sorted")
	}
}
