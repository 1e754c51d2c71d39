package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/osagent/domain/middleware"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// LoggingConfig configures the logging middleware.
type LoggingConfig struct {
	// LogInput logs the action input (may contain sensitive data).
	LogInput bool
	// LogOutput logs the action output (may be large).
	LogOutput bool
}

// Logging returns middleware that logs action execution. Successful actions
// log at debug, failed actions at warn with the error text.
func Logging(cfg LoggingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (json.RawMessage, error) {
			start := time.Now()

			entry := logging.Trace().
				Add(logging.RunID(execCtx.RunID)).
				Add(logging.Step(execCtx.Step)).
				Add(logging.Capability(execCtx.Action.Capability)).
				Add(logging.AuditTag(execCtx.Action.Tag()))
			if cfg.LogInput && len(execCtx.Input) > 0 {
				entry = entry.Add(logging.Str("input", string(execCtx.Input)))
			}
			entry.Msg("executing action")

			output, err := next(ctx, execCtx)
			duration := time.Since(start)

			if err != nil {
				logging.Warn().
					Add(logging.RunID(execCtx.RunID)).
					Add(logging.Step(execCtx.Step)).
					Add(logging.Capability(execCtx.Action.Capability)).
					Add(logging.AuditTag(execCtx.Action.Tag())).
					Add(logging.ErrorField(err)).
					Add(logging.Duration(duration)).
					Msg("action failed")
				return output, err
			}

			logEntry := logging.Debug().
				Add(logging.RunID(execCtx.RunID)).
				Add(logging.Step(execCtx.Step)).
				Add(logging.Capability(execCtx.Action.Capability)).
				Add(logging.AuditTag(execCtx.Action.Tag())).
				Add(logging.Duration(duration))
			if cfg.LogOutput && len(output) > 0 {
				logEntry = logEntry.Add(logging.Str("output", truncate(string(output), 500)))
			}
			logEntry.Msg("action succeeded")

			return output, nil
		}
	}
}

// truncate shortens s to at most max bytes, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
