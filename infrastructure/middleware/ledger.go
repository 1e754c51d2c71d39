package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/domain/middleware"
)

// LedgerConfig configures the ledger recording middleware.
type LedgerConfig struct {
	// Ledger is the ledger to record to.
	Ledger *ledger.Ledger
}

// LedgerRecording returns middleware that records action calls to the ledger.
func LedgerRecording(cfg LedgerConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (json.RawMessage, error) {
			if cfg.Ledger == nil {
				return next(ctx, execCtx)
			}

			capName := execCtx.Action.Capability
			tag := execCtx.Action.Tag()
			cfg.Ledger.RecordActionCall(execCtx.Step, capName, tag, execCtx.Action.Input)

			start := time.Now()
			output, err := next(ctx, execCtx)
			if err != nil {
				cfg.Ledger.RecordActionError(execCtx.Step, capName, tag, err)
			} else {
				cfg.Ledger.RecordActionResult(execCtx.Step, capName, tag, output, time.Since(start))
			}

			return output, err
		}
	}
}
