package config

import (
	"strings"
	"testing"
)

func TestValidator_ValidConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config *HostConfig
	}{
		{
			name:   "minimal",
			config: &HostConfig{WorkspaceRoot: "."},
		},
		{
			name: "defaults",
			config: func() *HostConfig {
				c := Default()
				return &c
			}(),
		},
		{
			name: "full",
			config: &HostConfig{
				WorkspaceRoot:       "/srv/work",
				AllowedProcCommands: []string{"echo", "ls"},
				MaxSteps:            4,
				Limits:              LimitsConfig{ActionsPerSecond: 5, Burst: 10},
				Browser:             &BrowserConfig{WebDriverURL: "http://localhost:4444"},
				Telemetry: TelemetryConfig{Tracing: TracingConfig{
					Enabled: true, Exporter: "otlp", Endpoint: "localhost:4317", SampleRate: 0.5,
				}},
				Storage: StorageConfig{
					Runs:  RunStorageConfig{Driver: "sqlite", DSN: "file::memory:"},
					Audit: AuditStorageConfig{Driver: "badger", Dir: "/tmp/audit"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errs := NewValidator().Validate(tt.config)
			if errs.HasErrors() {
				t.Errorf("expected no errors, got: %v", errs)
			}
		})
	}
}

func TestValidator_InvalidConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		config       *HostConfig
		wantErrPaths []string
	}{
		{
			name:         "missing workspace",
			config:       &HostConfig{},
			wantErrPaths: []string{"workspace_root"},
		},
		{
			name:         "blank command",
			config:       &HostConfig{WorkspaceRoot: ".", AllowedProcCommands: []string{"echo", " "}},
			wantErrPaths: []string{"allowed_proc_commands[1]"},
		},
		{
			name:         "negative limits",
			config:       &HostConfig{WorkspaceRoot: ".", MaxSteps: -1, MaxHandles: -2},
			wantErrPaths: []string{"max_steps", "max_handles"},
		},
		{
			name:         "browser without url",
			config:       &HostConfig{WorkspaceRoot: ".", Browser: &BrowserConfig{}},
			wantErrPaths: []string{"browser.webdriver_url"},
		},
		{
			name:         "bad logging",
			config:       &HostConfig{WorkspaceRoot: ".", Logging: LoggingConfig{Level: "loud", Format: "xml"}},
			wantErrPaths: []string{"logging.level", "logging.format"},
		},
		{
			name: "otlp without endpoint",
			config: &HostConfig{WorkspaceRoot: ".", Telemetry: TelemetryConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "otlp"},
			}},
			wantErrPaths: []string{"telemetry.tracing.endpoint"},
		},
		{
			name: "unknown drivers",
			config: &HostConfig{WorkspaceRoot: ".", Storage: StorageConfig{
				Runs:  RunStorageConfig{Driver: "postgres"},
				Audit: AuditStorageConfig{Driver: "s3"},
			}},
			wantErrPaths: []string{"storage.runs.driver", "storage.audit.driver"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errs := NewValidator().Validate(tt.config)
			if !errs.HasErrors() {
				t.Fatal("expected errors, got none")
			}
			assertErrorPaths(t, errs, tt.wantErrPaths)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{
		{Path: "max_steps", Message: "bad"},
		{Path: "max_handles", Message: "worse"},
	}
	msg := errs.Error()
	if !strings.HasPrefix(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count prefix", msg)
	}
	if !strings.Contains(msg, "max_handles: worse") {
		t.Errorf("Error() = %q, want path-qualified message", msg)
	}
}

func assertErrorPaths(t *testing.T, errs ValidationErrors, want []string) {
	t.Helper()

	got := make(map[string]bool, len(errs))
	for _, e := range errs {
		got[e.Path] = true
	}
	for _, path := range want {
		if !got[path] {
			t.Errorf("missing error for path %q, got: %v", path, errs)
		}
	}
}
