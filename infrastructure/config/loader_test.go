package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoader_LoadFile_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "hostd.yaml",
			content: `
workspace_root: work
allowed_proc_commands: [echo, ls]
max_steps: 4
guest:
  step_timeout: 2s
`,
		},
		{
			name:    "json",
			file:    "hostd.json",
			content: `{"workspace_root":"work","allowed_proc_commands":["echo","ls"],"max_steps":4,"guest":{"step_timeout":"2s"}}`,
		},
		{
			name: "jsonc",
			file: "hostd.jsonc",
			content: `{
  // sandbox root relative to this file
  "workspace_root": "work",
  "allowed_proc_commands": ["echo", "ls",],
  "max_steps": 4, /* bounded */
  "guest": {"step_timeout": "2s"},
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeFile(t, dir, tt.file, tt.content)

			cfg, err := NewLoader().LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if cfg.WorkspaceRoot != filepath.Join(dir, "work") {
				t.Errorf("WorkspaceRoot = %q, want %q", cfg.WorkspaceRoot, filepath.Join(dir, "work"))
			}
			if len(cfg.AllowedProcCommands) != 2 || !cfg.IsProcAllowed("/bin/ls") {
				t.Errorf("AllowedProcCommands = %v, want [echo ls]", cfg.AllowedProcCommands)
			}
			if cfg.MaxSteps != 4 {
				t.Errorf("MaxSteps = %d, want 4", cfg.MaxSteps)
			}
			if cfg.Guest.StepTimeout.Duration() != 2*time.Second {
				t.Errorf("StepTimeout = %v, want 2s", cfg.Guest.StepTimeout.Duration())
			}
			if cfg.MaxHandles != domainconfig.DefaultMaxHandles {
				t.Errorf("MaxHandles = %d, want default", cfg.MaxHandles)
			}
		})
	}
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "missing", path: filepath.Join(dir, "absent.yaml"), want: domainconfig.ErrConfigNotFound},
		{name: "directory", path: dir, want: domainconfig.ErrInvalidFormat},
		{name: "extension", path: writeFile(t, dir, "hostd.toml", "x = 1"), want: domainconfig.ErrUnsupportedFormat},
		{name: "bad yaml", path: writeFile(t, dir, "bad.yaml", "workspace_root: [unclosed"), want: domainconfig.ErrInvalidFormat},
		{name: "unknown json field", path: writeFile(t, dir, "bad.json", `{"workspace_root":".","bogus":1}`), want: domainconfig.ErrInvalidFormat},
		{name: "invalid", path: writeFile(t, dir, "invalid.yaml", "workspace_root: .\nmax_steps: -1\n"), want: domainconfig.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewLoader().LoadFile(tt.path); !errors.Is(err, tt.want) {
				t.Errorf("LoadFile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("HOSTD_TEST_ROOT", "/srv/agent")

	cfg, err := NewLoader().LoadString("workspace_root: ${HOSTD_TEST_ROOT}\nmax_steps: ${HOSTD_TEST_STEPS:-3}\n", FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.WorkspaceRoot != "/srv/agent" || cfg.MaxSteps != 3 {
		t.Errorf("LoadString() = %q/%d, want /srv/agent/3", cfg.WorkspaceRoot, cfg.MaxSteps)
	}

	_, err = NewLoaderWithOptions(WithStrictEnv(true)).LoadString("workspace_root: ${HOSTD_TEST_UNSET}\n", FormatYAML)
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Errorf("strict LoadString() error = %v, want ErrMissingEnvVar", err)
	}

	cfg, err = NewLoaderWithOptions(WithEnvExpansion(false), WithValidation(false)).
		LoadString("workspace_root: ${HOSTD_TEST_ROOT}\n", FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.WorkspaceRoot != "${HOSTD_TEST_ROOT}" {
		t.Errorf("WorkspaceRoot = %q, want unexpanded", cfg.WorkspaceRoot)
	}
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	base := domainconfig.Default()
	base.AllowedProcCommands = []string{"echo"}

	cfg, err := NewBuilder(&base).
		WithWorkspace(root).
		WithComponent("/opt/agent.wasm").
		AllowProc("ls", "echo", "").
		WithMaxSteps(3).
		WithRestarts(2).
		WithStepTimeout(time.Second).
		WithLogging("debug", "json").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	canonical, _ := filepath.EvalSymlinks(root)
	if cfg.WorkspaceRoot != canonical {
		t.Errorf("WorkspaceRoot = %q, want %q", cfg.WorkspaceRoot, canonical)
	}
	if len(cfg.AllowedProcCommands) != 2 {
		t.Errorf("AllowedProcCommands = %v, want [echo ls]", cfg.AllowedProcCommands)
	}
	if len(base.AllowedProcCommands) != 1 {
		t.Errorf("Build() mutated the base allow-list: %v", base.AllowedProcCommands)
	}
	if cfg.MaxSteps != 3 || cfg.Restart.MaxAttempts != 2 || cfg.Guest.Component != "/opt/agent.wasm" {
		t.Errorf("Build() = %+v, overrides not applied", cfg)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestBuilder_BuildErrors(t *testing.T) {
	t.Parallel()

	file := writeFile(t, t.TempDir(), "file.txt", "x")

	tests := []struct {
		name    string
		builder *Builder
		want    error
	}{
		{name: "missing root", builder: NewBuilder(nil).WithWorkspace(filepath.Join(t.TempDir(), "absent")), want: domainconfig.ErrInvalidWorkspace},
		{name: "file root", builder: NewBuilder(nil).WithWorkspace(file), want: domainconfig.ErrInvalidWorkspace},
		{name: "invalid logging", builder: NewBuilder(nil).WithLogging("loud", ""), want: domainconfig.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tt.builder.Build(); !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSchemaJSON(t *testing.T) {
	t.Parallel()

	out, err := SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("SchemaJSON() is not JSON: %v", err)
	}
	props, _ := doc["properties"].(map[string]any)
	for _, key := range []string{"workspace_root", "allowed_proc_commands", "guest", "storage", "telemetry"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}
}
