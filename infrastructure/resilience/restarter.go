// Package resilience provides whole-run restart behavior using fortify.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// errPermanent marks failures the restarter must not retry.
var errPermanent = errors.New("permanent failure")

// Attempt executes one run attempt. attempt starts at 1.
type Attempt func(ctx context.Context, attempt int) (*agent.Run, error)

// RestarterConfig configures the restarter.
type RestarterConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first restart.
	InitialDelay time.Duration

	// BackoffMultiplier is the exponential backoff multiplier.
	BackoffMultiplier float64
}

// DefaultRestarterConfig returns a configuration that never restarts.
func DefaultRestarterConfig() RestarterConfig {
	return RestarterConfig{
		MaxAttempts:       1,
		InitialDelay:      500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// Restarter re-runs a whole task after a retryable failure.
type Restarter struct {
	config RestarterConfig
	retry  retry.Retry[*agent.Run]
}

// NewRestarter creates a new restarter.
func NewRestarter(config RestarterConfig) *Restarter {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}

	return &Restarter{
		config: config,
		retry: retry.New[*agent.Run](retry.Config{
			MaxAttempts:        config.MaxAttempts,
			InitialDelay:       config.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         config.BackoffMultiplier,
			NonRetryableErrors: []error{errPermanent},
		}),
	}
}

// Do runs fn until it succeeds, fails without a retryable hint, or the
// attempt budget is spent. The result of the last attempt is returned.
func (r *Restarter) Do(ctx context.Context, fn Attempt) (*agent.Run, error) {
	var (
		attempt int
		lastRun *agent.Run
		lastErr error
	)

	_, err := r.retry.Do(ctx, func(ctx context.Context) (*agent.Run, error) {
		attempt++
		lastRun, lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return lastRun, nil
		}
		if !agent.IsRetryable(lastErr) || attempt >= r.config.MaxAttempts {
			return lastRun, fmt.Errorf("%w: %w", errPermanent, lastErr)
		}

		logging.Warn().
			Add(logging.Attempt(attempt)).
			Add(logging.Retryable(true)).
			Add(logging.ErrorField(lastErr)).
			Msg("run failed, restarting")
		return lastRun, lastErr
	})

	if lastErr == nil && err != nil {
		// fn never ran or the context ended between attempts.
		return lastRun, err
	}
	return lastRun, lastErr
}

// MaxAttempts returns the attempt budget.
func (r *Restarter) MaxAttempts() int {
	return r.config.MaxAttempts
}
