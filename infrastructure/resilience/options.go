package resilience

import "time"

// Option configures the restarter.
type Option func(*RestarterConfig)

// WithMaxAttempts sets the total attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *RestarterConfig) {
		c.MaxAttempts = n
	}
}

// WithInitialDelay sets the delay before the first restart.
func WithInitialDelay(d time.Duration) Option {
	return func(c *RestarterConfig) {
		c.InitialDelay = d
	}
}

// WithBackoffMultiplier sets the exponential backoff multiplier.
func WithBackoffMultiplier(m float64) Option {
	return func(c *RestarterConfig) {
		c.BackoffMultiplier = m
	}
}

// NewRestarterWithOptions creates a restarter with the given options.
func NewRestarterWithOptions(opts ...Option) *Restarter {
	config := DefaultRestarterConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return NewRestarter(config)
}
