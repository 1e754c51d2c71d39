package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/middleware"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// RateLimitExceededMessage is the failure text of a throttled action.
const RateLimitExceededMessage = "action rate limit exceeded"

// RateLimitScope defines the scope for rate limiting.
type RateLimitScope string

const (
	// ScopeGlobal applies rate limiting across all runs and capabilities.
	ScopeGlobal RateLimitScope = "global"
	// ScopePerRun applies rate limiting per individual run.
	ScopePerRun RateLimitScope = "per_run"
	// ScopePerCapability applies rate limiting per capability.
	ScopePerCapability RateLimitScope = "per_capability"
	// ScopePerRunCapability applies rate limiting per run and capability.
	ScopePerRunCapability RateLimitScope = "per_run_capability"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use. If nil, one is created from
	// Rate, Burst and FailOpen.
	Limiter ratelimit.RateLimiter

	// Scope determines how rate limiting keys are generated.
	Scope RateLimitScope

	// Rate is the number of actions admitted per second.
	Rate int

	// Burst is the bucket capacity. Defaults to Rate.
	Burst int

	// FailOpen admits actions when the limiter itself fails.
	FailOpen bool

	// OnLimitExceeded is called when an action is throttled.
	OnLimitExceeded func(ctx context.Context, execCtx *middleware.ExecutionContext)
}

// RateLimit returns middleware that enforces a token bucket on action
// execution. A throttled action fails with a denied capability error and
// never reaches the provider.
func RateLimit(cfg RateLimitConfig) middleware.Middleware {
	limiter := cfg.Limiter
	if limiter == nil {
		rate := cfg.Rate
		if rate <= 0 {
			rate = 100
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = rate
		}
		limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			FailOpen: cfg.FailOpen,
		})
	}

	scope := cfg.Scope
	if scope == "" {
		scope = ScopeGlobal
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (json.RawMessage, error) {
			key := rateLimitKey(scope, execCtx)
			if !limiter.Allow(ctx, key) {
				logging.Warn().
					Add(logging.RunID(execCtx.RunID)).
					Add(logging.Capability(execCtx.Action.Capability)).
					Add(logging.Str("scope", string(scope))).
					Add(logging.Str("key", key)).
					Msg("rate limit exceeded")

				if cfg.OnLimitExceeded != nil {
					cfg.OnLimitExceeded(ctx, execCtx)
				}
				return nil, capability.Denied(RateLimitExceededMessage)
			}
			return next(ctx, execCtx)
		}
	}
}

func rateLimitKey(scope RateLimitScope, execCtx *middleware.ExecutionContext) string {
	switch scope {
	case ScopePerRun:
		return execCtx.RunID
	case ScopePerCapability:
		return execCtx.Action.Capability
	case ScopePerRunCapability:
		return fmt.Sprintf("%s:%s", execCtx.RunID, execCtx.Action.Capability)
	default:
		return "global"
	}
}
