package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates host configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *HostConfig) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateLimits(config)
	v.validateGuest(config)
	v.validateBrowser(config)
	v.validateLogging(config)
	v.validateTelemetry(config)
	v.validateStorage(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRequired(config *HostConfig) {
	if config.WorkspaceRoot == "" {
		v.addError("workspace_root", "workspace_root is required")
	}
	for i, cmd := range config.AllowedProcCommands {
		if strings.TrimSpace(cmd) == "" {
			v.addError(fmt.Sprintf("allowed_proc_commands[%d]", i), "command must not be empty")
		}
	}
}

func (v *Validator) validateLimits(config *HostConfig) {
	if config.MaxSteps < 0 {
		v.addError("max_steps", "max_steps must be non-negative")
	}
	if config.MaxHandles < 0 {
		v.addError("max_handles", "max_handles must be non-negative")
	}
	if config.Limits.ActionsPerSecond < 0 {
		v.addError("limits.actions_per_second", "actions_per_second must be non-negative")
	}
	if config.Limits.ActionsPerSecond > 0 && config.Limits.Burst < 0 {
		v.addError("limits.burst", "burst must be non-negative")
	}
	if config.Restart.MaxAttempts < 0 {
		v.addError("restart.max_attempts", "max_attempts must be non-negative")
	}
	if config.Restart.InitialDelay < 0 {
		v.addError("restart.initial_delay", "initial_delay must be non-negative")
	}
}

func (v *Validator) validateGuest(config *HostConfig) {
	if config.Guest.StepTimeout < 0 {
		v.addError("guest.step_timeout", "step_timeout must be non-negative")
	}
	// 65536 pages is the 4GiB wasm32 address space.
	if config.Guest.MemoryLimitPages > 65536 {
		v.addError("guest.memory_limit_pages", "memory_limit_pages must not exceed 65536")
	}
}

func (v *Validator) validateBrowser(config *HostConfig) {
	if config.Browser == nil {
		return
	}
	if config.Browser.WebDriverURL == "" {
		v.addError("browser.webdriver_url", "webdriver_url is required when browser is configured")
	}
}

func (v *Validator) validateLogging(config *HostConfig) {
	if config.Logging.Level != "" {
		validLevels := map[string]bool{
			"trace": true, "debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[strings.ToLower(config.Logging.Level)] {
			v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
		}
	}
	if config.Logging.Format != "" && config.Logging.Format != "json" && config.Logging.Format != "console" {
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateTelemetry(config *HostConfig) {
	tracing := config.Telemetry.Tracing
	if !tracing.Enabled {
		return
	}
	switch tracing.Exporter {
	case "", "stdout", "noop":
	case "otlp":
		if tracing.Endpoint == "" {
			v.addError("telemetry.tracing.endpoint", "endpoint is required for otlp exporter")
		}
	default:
		v.addError("telemetry.tracing.exporter", fmt.Sprintf("unknown exporter: %s", tracing.Exporter))
	}
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		v.addError("telemetry.tracing.sample_rate", "sample_rate must be between 0 and 1")
	}
}

func (v *Validator) validateStorage(config *HostConfig) {
	switch config.Storage.Runs.Driver {
	case "", "memory":
	case "sqlite":
		if config.Storage.Runs.DSN == "" {
			v.addError("storage.runs.dsn", "dsn is required for sqlite driver")
		}
	default:
		v.addError("storage.runs.driver", fmt.Sprintf("unknown driver: %s", config.Storage.Runs.Driver))
	}

	switch config.Storage.Audit.Driver {
	case "", "memory":
	case "badger":
		if config.Storage.Audit.Dir == "" {
			v.addError("storage.audit.dir", "dir is required for badger driver")
		}
	default:
		v.addError("storage.audit.driver", fmt.Sprintf("unknown driver: %s", config.Storage.Audit.Driver))
	}
}
