// Package observability provides OpenTelemetry integration for tracing and metrics.
package observability

import (
	"io"
	"os"
	"time"

	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
)

// Config configures the observability infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Tracing configures span export.
	Tracing TracingConfig

	// Metrics configures metric collection.
	Metrics MetricsConfig

	// Writer receives stdout exporter output. Defaults to os.Stderr so that
	// stdout stays reserved for run results.
	Writer io.Writer
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled enables tracing (default: false).
	Enabled bool

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration
}

// MetricsConfig configures metric collection.
type MetricsConfig struct {
	// Enabled installs an SDK meter provider backed by a manual reader.
	Enabled bool
}

// ExporterType specifies the telemetry exporter.
type ExporterType string

const (
	// ExporterOTLP exports over OTLP gRPC.
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout writes spans as JSON to Config.Writer.
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables export.
	ExporterNoop ExporterType = "noop"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "hostd",
		ServiceVersion: "dev",
		Tracing: TracingConfig{
			Exporter:     ExporterNoop,
			SampleRate:   1.0,
			BatchTimeout: 5 * time.Second,
		},
		Writer: os.Stderr,
	}
}

// Option configures the observability infrastructure.
type Option func(*Config)

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithTracing enables tracing with the specified exporter.
func WithTracing(exporter ExporterType, endpoint string) Option {
	return func(c *Config) {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = exporter
		c.Tracing.Endpoint = endpoint
	}
}

// WithTracingInsecure disables TLS for tracing.
func WithTracingInsecure() Option {
	return func(c *Config) {
		c.Tracing.Insecure = true
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.Tracing.SampleRate = rate
	}
}

// WithMetrics enables metric collection.
func WithMetrics() Option {
	return func(c *Config) {
		c.Metrics.Enabled = true
	}
}

// WithWriter redirects stdout exporter output.
func WithWriter(w io.Writer) Option {
	return func(c *Config) {
		c.Writer = w
	}
}

// FromHostConfig translates the telemetry section of a host configuration.
func FromHostConfig(tc domainconfig.TelemetryConfig) []Option {
	var opts []Option
	if tc.Tracing.Enabled {
		opts = append(opts, WithTracing(ExporterType(tc.Tracing.Exporter), tc.Tracing.Endpoint))
		if tc.Tracing.Insecure {
			opts = append(opts, WithTracingInsecure())
		}
		if tc.Tracing.SampleRate > 0 {
			opts = append(opts, WithSampleRate(tc.Tracing.SampleRate))
		}
	}
	if tc.Metrics.Enabled {
		opts = append(opts, WithMetrics())
	}
	return opts
}
