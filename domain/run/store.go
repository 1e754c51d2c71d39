// Package run provides the domain interface for run persistence.
package run

import (
	"context"
	"time"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// Store defines the interface for run persistence.
// Implementations may be in-memory, SQLite, or any other backend.
type Store interface {
	// Save persists a new run.
	Save(ctx context.Context, run *agent.Run) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*agent.Run, error)

	// Update updates an existing run.
	Update(ctx context.Context, run *agent.Run) error

	// Delete removes a run by ID.
	Delete(ctx context.Context, id string) error

	// List returns runs matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*agent.Run, error)

	// Count returns the number of runs matching the filter.
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

// ListFilter specifies criteria for listing runs.
type ListFilter struct {
	// Phases filters by run phase (empty means all).
	Phases []agent.Phase

	// FromTime filters runs started after this time.
	FromTime time.Time

	// ToTime filters runs started before this time.
	ToTime time.Time

	// TaskPattern filters by task text (substring match).
	TaskPattern string

	// Limit is the maximum number of runs to return (0 = no limit).
	Limit int

	// Offset is the number of runs to skip for pagination.
	Offset int

	// OrderBy specifies the sort order.
	OrderBy OrderBy

	// Descending reverses the sort order.
	Descending bool
}

// OrderBy specifies how to sort run results.
type OrderBy string

const (
	// OrderByStartTime sorts by run start time.
	OrderByStartTime OrderBy = "start_time"

	// OrderByEndTime sorts by run end time.
	OrderByEndTime OrderBy = "end_time"

	// OrderByID sorts by run ID.
	OrderByID OrderBy = "id"

	// OrderByPhase sorts by run phase.
	OrderByPhase OrderBy = "phase"
)
