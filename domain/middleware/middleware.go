// Package middleware provides composable middleware for action execution.
package middleware

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

// ExecutionContext contains all information needed for middleware decisions.
type ExecutionContext struct {
	// RunID is the unique identifier for the current run.
	RunID string
	// Step is the step whose plan requested the action.
	Step uint32
	// Index is the position of the action in its batch.
	Index int
	// Action is the planned action being executed.
	Action capability.PlannedAction
	// Input is the decoded JSON object of the action.
	Input json.RawMessage
}

// Handler executes an action and returns its JSON output.
type Handler func(ctx context.Context, execCtx *ExecutionContext) (json.RawMessage, error)

// Middleware wraps a Handler with additional behavior.
// Middleware can:
// - Execute code before the next handler
// - Execute code after the next handler
// - Short-circuit by not calling next
// - Transform results or errors
type Middleware func(next Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware are executed in the order provided, with each wrapping the next.
// For example, Chain(A, B, C) produces: A -> B -> C -> handler
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		handler := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Noop returns a middleware that does nothing, just passes through.
func Noop() Middleware {
	return func(next Handler) Handler {
		return next
	}
}
