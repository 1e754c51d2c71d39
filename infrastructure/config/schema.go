package config

import (
	"encoding/json"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
}

const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// GenerateSchema generates a JSON Schema for the host configuration.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/felixgeelhaar/osagent/hostd-config.schema.json",
		Title:       "hostd configuration",
		Description: "Configuration of the osagent host runtime",
		Type:        "object",
		Required:    []string{"workspace_root"},
		Properties: map[string]*JSONSchema{
			"workspace_root": {
				Type:        "string",
				Description: "Sandbox root for every filesystem and process capability",
			},
			"allowed_proc_commands": {
				Type:        "array",
				Description: "Commands the guest may spawn, matched by full string or final path segment",
				Items:       &JSONSchema{Type: "string", Pattern: `\S`},
			},
			"max_steps": {
				Type:        "integer",
				Description: "Maximum number of guest steps per run",
				Default:     8,
				Minimum:     floatPtr(0),
			},
			"max_handles": {
				Type:        "integer",
				Description: "Maximum number of live resource handles",
				Default:     1024,
				Minimum:     floatPtr(0),
			},
			"guest":     guestSchema(),
			"restart":   restartSchema(),
			"limits":    limitsSchema(),
			"browser":   browserSchema(),
			"llm":       object("Language model endpoint", map[string]*JSONSchema{"endpoint": {Type: "string"}, "model": {Type: "string"}}),
			"logging":   loggingSchema(),
			"telemetry": telemetrySchema(),
			"storage":   storageSchema(),
		},
	}
}

func object(description string, props map[string]*JSONSchema) *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Description:          description,
		Properties:           props,
		AdditionalProperties: boolPtr(false),
	}
}

func guestSchema() *JSONSchema {
	return object("Planning component settings", map[string]*JSONSchema{
		"component":          {Type: "string", Description: "Path to the WebAssembly module"},
		"memory_limit_pages": {Type: "integer", Description: "Linear memory cap in 64KiB pages", Default: 256, Minimum: floatPtr(0), Maximum: floatPtr(65536)},
		"step_timeout":       {Type: "string", Description: "Bound on a single step call", Default: "30s", Pattern: durationPattern},
	})
}

func restartSchema() *JSONSchema {
	return object("Whole-run restarts after retryable failures", map[string]*JSONSchema{
		"max_attempts":  {Type: "integer", Description: "Total attempts including the first", Default: 1, Minimum: floatPtr(0)},
		"initial_delay": {Type: "string", Description: "First backoff delay", Default: "500ms", Pattern: durationPattern},
	})
}

func limitsSchema() *JSONSchema {
	return object("Action rate limiting", map[string]*JSONSchema{
		"actions_per_second": {Type: "integer", Description: "Sustained action rate, 0 disables limiting", Minimum: floatPtr(0)},
		"burst":              {Type: "integer", Description: "Token bucket size", Minimum: floatPtr(0)},
	})
}

func browserSchema() *JSONSchema {
	s := object("Browser capability settings", map[string]*JSONSchema{
		"webdriver_url":   {Type: "string", Format: "uri"},
		"default_profile": {Type: "string"},
	})
	s.Required = []string{"webdriver_url"}
	return s
}

func loggingSchema() *JSONSchema {
	return object("Structured logging", map[string]*JSONSchema{
		"level":  {Type: "string", Enum: []string{"trace", "debug", "info", "warn", "error"}, Default: "info"},
		"format": {Type: "string", Enum: []string{"json", "console"}, Default: "console"},
	})
}

func telemetrySchema() *JSONSchema {
	return object("OpenTelemetry settings", map[string]*JSONSchema{
		"tracing": object("Span export", map[string]*JSONSchema{
			"enabled":     {Type: "boolean"},
			"exporter":    {Type: "string", Enum: []string{"stdout", "otlp", "noop"}, Default: "stdout"},
			"endpoint":    {Type: "string", Description: "OTLP gRPC endpoint"},
			"insecure":    {Type: "boolean"},
			"sample_rate": {Type: "number", Default: 1.0, Minimum: floatPtr(0), Maximum: floatPtr(1)},
		}),
		"metrics": object("Metric collection", map[string]*JSONSchema{
			"enabled": {Type: "boolean"},
		}),
	})
}

func storageSchema() *JSONSchema {
	return object("Persistence backends", map[string]*JSONSchema{
		"runs": object("Run history", map[string]*JSONSchema{
			"driver": {Type: "string", Enum: []string{"memory", "sqlite"}, Default: "memory"},
			"dsn":    {Type: "string"},
		}),
		"audit": object("Audit ledger", map[string]*JSONSchema{
			"driver": {Type: "string", Enum: []string{"memory", "badger"}, Default: "memory"},
			"dir":    {Type: "string"},
		}),
	})
}

func floatPtr(f float64) *float64 {
	return &f
}

func boolPtr(b bool) *bool {
	return &b
}

// SchemaJSON returns the JSON Schema as an indented JSON string.
func SchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
