// Package memory provides in-memory implementations of the storage interfaces.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/run"
)

// RunStore is an in-memory implementation of run.Store. Runs are stored as
// JSON snapshots so callers never share state with the store.
type RunStore struct {
	runs map[string][]byte
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string][]byte),
	}
}

// Save persists a new run.
func (s *RunStore) Save(ctx context.Context, r *agent.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		return run.ErrInvalidRunID
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.ID]; exists {
		return run.ErrRunExists
	}
	s.runs[r.ID] = data
	return nil
}

// Get retrieves a run by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*agent.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, run.ErrInvalidRunID
	}

	s.mu.RLock()
	data, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, run.ErrRunNotFound
	}

	var r agent.Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update updates an existing run.
func (s *RunStore) Update(ctx context.Context, r *agent.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		return run.ErrInvalidRunID
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.ID]; !exists {
		return run.ErrRunNotFound
	}
	s.runs[r.ID] = data
	return nil
}

// Delete removes a run by ID.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return run.ErrInvalidRunID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[id]; !exists {
		return run.ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}

// List returns runs matching the filter.
func (s *RunStore) List(ctx context.Context, filter run.ListFilter) ([]*agent.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := s.matching(filter)
	sortRuns(result, filter.OrderBy, filter.Descending)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*agent.Run{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of runs matching the filter.
func (s *RunStore) Count(ctx context.Context, filter run.ListFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(s.matching(filter))), nil
}

// Len returns the number of stored runs.
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

func (s *RunStore) matching(filter run.ListFilter) []*agent.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*agent.Run
	for _, data := range s.runs {
		var r agent.Run
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		if matchesFilter(&r, filter) {
			result = append(result, &r)
		}
	}
	return result
}

func matchesFilter(r *agent.Run, filter run.ListFilter) bool {
	if len(filter.Phases) > 0 && !slices.Contains(filter.Phases, r.Phase) {
		return false
	}
	if !filter.FromTime.IsZero() && r.StartTime.Before(filter.FromTime) {
		return false
	}
	if !filter.ToTime.IsZero() && r.StartTime.After(filter.ToTime) {
		return false
	}
	if filter.TaskPattern != "" && !strings.Contains(r.Task, filter.TaskPattern) {
		return false
	}
	return true
}

func sortRuns(runs []*agent.Run, orderBy run.OrderBy, descending bool) {
	slices.SortStableFunc(runs, func(a, b *agent.Run) int {
		var c int
		switch orderBy {
		case run.OrderByEndTime:
			c = a.EndTime.Compare(b.EndTime)
		case run.OrderByID:
			c = cmp.Compare(a.ID, b.ID)
		case run.OrderByPhase:
			c = cmp.Compare(a.Phase, b.Phase)
		default:
			c = a.StartTime.Compare(b.StartTime)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if descending {
			return -c
		}
		return c
	})
}

var _ run.Store = (*RunStore)(nil)
