package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// guardHasActions allows ACT only for a non-empty batch.
// Note: In statekit, guards receive the context by value. Since our context is *Context,
// the guard receives *Context directly.
func guardHasActions(_ *Context, event statekit.Event) bool {
	payload, ok := event.Payload.(ActPayload)
	return ok && payload.Actions > 0
}
