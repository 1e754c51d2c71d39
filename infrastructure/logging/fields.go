package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for host runtime logging.

// RunID adds a run ID field.
func RunID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("run_id", id)
	}
}

// Step adds the orchestrator step counter.
func Step(step uint32) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("step", int64(step))
	}
}

// Phase adds a run phase field.
func Phase(p agent.Phase) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("phase", string(p))
	}
}

// FromPhase adds a from_phase field for transitions.
func FromPhase(p agent.Phase) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_phase", string(p))
	}
}

// ToPhase adds a to_phase field for transitions.
func ToPhase(p agent.Phase) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_phase", string(p))
	}
}

// Capability adds the capability name of an action.
func Capability(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("capability", name)
	}
}

// AuditTag adds the audit tag of an action; empty tags are omitted.
func AuditTag(tag string) Field {
	return func(e *bolt.Event) *bolt.Event {
		if tag == "" {
			return e
		}
		return e.Str("audit_tag", tag)
	}
}

// Handle adds a resource handle.
func Handle(h string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("handle", h)
	}
}

// Command adds a process command.
func Command(cmd string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("command", cmd)
	}
}

// Task adds the task handed to the guest.
func Task(task string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("task", task)
	}
}

// Digest adds a component digest.
func Digest(digest string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("digest", digest)
	}
}

// Count adds a named count.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Attempt adds a restart attempt number.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// Retryable adds the retryable hint of a failure.
func Retryable(retryable bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("retryable", retryable)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Summary adds a summary field.
func Summary(summary string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("summary", summary)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
