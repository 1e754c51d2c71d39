package application

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/domain/middleware"
	"github.com/felixgeelhaar/osagent/domain/run"
	"github.com/felixgeelhaar/osagent/infrastructure/resilience"
	"github.com/felixgeelhaar/osagent/infrastructure/storage/memory"
)

// RuntimeConfig contains configuration for the runtime.
type RuntimeConfig struct {
	Host      *domainconfig.HostConfig
	Guests    GuestFactory
	Runs      run.Store
	Ledgers   ledger.Store
	Restarter *resilience.Restarter
	Tracer    trace.Tracer
	Meter     metric.Meter
	// Middleware replaces the default action middleware when set. The
	// ledger recorder is always added.
	Middleware *middleware.Registry
}

// Option configures the runtime.
type Option func(*RuntimeConfig)

// WithGuests sets the guest factory.
func WithGuests(g GuestFactory) Option {
	return func(c *RuntimeConfig) {
		c.Guests = g
	}
}

// WithRunStore sets the run history store.
func WithRunStore(s run.Store) Option {
	return func(c *RuntimeConfig) {
		c.Runs = s
	}
}

// WithLedgerStore sets the audit ledger store.
func WithLedgerStore(s ledger.Store) Option {
	return func(c *RuntimeConfig) {
		c.Ledgers = s
	}
}

// WithRestarter sets the whole-run restarter.
func WithRestarter(r *resilience.Restarter) Option {
	return func(c *RuntimeConfig) {
		c.Restarter = r
	}
}

// WithTracer sets the tracer for run, step and action spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *RuntimeConfig) {
		c.Tracer = t
	}
}

// WithMeter sets the meter for action metrics.
func WithMeter(m metric.Meter) Option {
	return func(c *RuntimeConfig) {
		c.Meter = m
	}
}

// WithMiddleware sets a custom action middleware registry.
// If not set, the runtime uses a default chain with:
// - RateLimit middleware (when limits.actions_per_second is set)
// - Tracing middleware (one span per action)
// - Metrics middleware (when a meter is configured)
// - Logging middleware (execution timing and results)
func WithMiddleware(m *middleware.Registry) Option {
	return func(c *RuntimeConfig) {
		c.Middleware = m
	}
}

// NewRuntimeWithOptions creates a runtime for host with functional options.
// Stores default to in-memory implementations.
func NewRuntimeWithOptions(host *domainconfig.HostConfig, opts ...Option) (*Runtime, error) {
	config := RuntimeConfig{Host: host}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Runs == nil {
		config.Runs = memory.NewRunStore()
	}
	if config.Ledgers == nil {
		config.Ledgers = memory.NewLedgerStore()
	}
	return NewRuntime(config)
}
