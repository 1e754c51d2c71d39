package ledger

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrNoEntries is returned when a run has no persisted entries.
	ErrNoEntries = errors.New("no ledger entries for run")

	// ErrInvalidEntry is returned for an entry without a run ID.
	ErrInvalidEntry = errors.New("ledger entry has no run ID")
)

// Store persists ledger entries beyond the lifetime of a run.
type Store interface {
	// Append persists entries in order. Entries must carry a RunID and Seq.
	Append(ctx context.Context, entries ...Entry) error

	// Load returns the entries of a run ordered by Seq.
	Load(ctx context.Context, runID string) ([]Entry, error)

	// Close releases the backend.
	Close() error
}
