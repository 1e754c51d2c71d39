// Package config provides domain models for host configuration.
package config

import (
	"path/filepath"
	"slices"
	"time"
)

// Defaults applied by Default and by the loader.
const (
	DefaultMaxSteps         = 8
	DefaultMaxHandles       = 1024
	DefaultMemoryLimitPages = 256
	DefaultStepTimeout      = 30 * time.Second
	DefaultComponent        = "./target/wasm32-wasip2/release/agent_core.wasm"
)

// HostConfig is the immutable configuration of one host invocation.
type HostConfig struct {
	// WorkspaceRoot is the sandbox root. Canonicalized at load time.
	WorkspaceRoot string `json:"workspace_root" yaml:"workspace_root"`
	// AllowedProcCommands lists the commands the guest may spawn. Empty denies all.
	AllowedProcCommands []string `json:"allowed_proc_commands,omitempty" yaml:"allowed_proc_commands,omitempty"`
	// MaxSteps bounds the orchestration loop.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	// MaxHandles bounds the resource table.
	MaxHandles int `json:"max_handles,omitempty" yaml:"max_handles,omitempty"`

	Guest     GuestConfig     `json:"guest,omitempty" yaml:"guest,omitempty"`
	Restart   RestartConfig   `json:"restart,omitempty" yaml:"restart,omitempty"`
	Limits    LimitsConfig    `json:"limits,omitempty" yaml:"limits,omitempty"`
	Browser   *BrowserConfig  `json:"browser,omitempty" yaml:"browser,omitempty"`
	LLM       *LLMConfig      `json:"llm,omitempty" yaml:"llm,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// GuestConfig configures the planning component.
type GuestConfig struct {
	// Component is the path to the WebAssembly module.
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
	// MemoryLimitPages caps guest linear memory in 64KiB pages.
	MemoryLimitPages uint32 `json:"memory_limit_pages,omitempty" yaml:"memory_limit_pages,omitempty"`
	// StepTimeout bounds a single guest step call.
	StepTimeout Duration `json:"step_timeout,omitempty" yaml:"step_timeout,omitempty"`
}

// RestartConfig controls whole-run restarts after retryable failures.
type RestartConfig struct {
	// MaxAttempts is the total number of attempts (1 disables restarts).
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialDelay is the first backoff delay.
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
}

// LimitsConfig throttles action execution.
type LimitsConfig struct {
	// ActionsPerSecond is the sustained action rate (0 disables limiting).
	ActionsPerSecond int `json:"actions_per_second,omitempty" yaml:"actions_per_second,omitempty"`
	// Burst is the token bucket size.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// BrowserConfig enables the browser capability family.
type BrowserConfig struct {
	WebDriverURL   string `json:"webdriver_url" yaml:"webdriver_url"`
	DefaultProfile string `json:"default_profile,omitempty" yaml:"default_profile,omitempty"`
}

// LLMConfig describes the language model endpoint.
type LLMConfig struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Exporter is stdout, otlp or noop.
	Exporter   string  `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint   string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure   bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// MetricsConfig configures metric collection.
type MetricsConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// StorageConfig selects persistence backends.
type StorageConfig struct {
	Runs  RunStorageConfig   `json:"runs,omitempty" yaml:"runs,omitempty"`
	Audit AuditStorageConfig `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// RunStorageConfig selects the run history backend.
type RunStorageConfig struct {
	// Driver is memory or sqlite.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// AuditStorageConfig selects the audit ledger backend.
type AuditStorageConfig struct {
	// Driver is memory or badger.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() HostConfig {
	cfg := HostConfig{WorkspaceRoot: "."}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *HostConfig) ApplyDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxHandles == 0 {
		c.MaxHandles = DefaultMaxHandles
	}
	if c.Guest.Component == "" {
		c.Guest.Component = DefaultComponent
	}
	if c.Guest.MemoryLimitPages == 0 {
		c.Guest.MemoryLimitPages = DefaultMemoryLimitPages
	}
	if c.Guest.StepTimeout == 0 {
		c.Guest.StepTimeout = Duration(DefaultStepTimeout)
	}
	if c.Restart.MaxAttempts == 0 {
		c.Restart.MaxAttempts = 1
	}
	if c.Restart.InitialDelay == 0 {
		c.Restart.InitialDelay = Duration(500 * time.Millisecond)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Telemetry.Tracing.Exporter == "" {
		c.Telemetry.Tracing.Exporter = "stdout"
	}
	if c.Telemetry.Tracing.SampleRate == 0 {
		c.Telemetry.Tracing.SampleRate = 1.0
	}
	if c.Storage.Runs.Driver == "" {
		c.Storage.Runs.Driver = "memory"
	}
	if c.Storage.Runs.Driver == "sqlite" && c.Storage.Runs.DSN == "" {
		c.Storage.Runs.DSN = "file:hostd.db?cache=shared&mode=rwc"
	}
	if c.Storage.Audit.Driver == "" {
		c.Storage.Audit.Driver = "memory"
	}
	if c.Storage.Audit.Driver == "badger" && c.Storage.Audit.Dir == "" {
		c.Storage.Audit.Dir = ".hostd/audit"
	}
}

// IsProcAllowed matches program against the allow-list by full string or
// by final path segment.
func (c *HostConfig) IsProcAllowed(program string) bool {
	if len(c.AllowedProcCommands) == 0 {
		return false
	}
	base := filepath.Base(program)
	return slices.ContainsFunc(c.AllowedProcCommands, func(entry string) bool {
		return entry == program || entry == base
	})
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
