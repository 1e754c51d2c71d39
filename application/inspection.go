package application

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/domain/run"
	"github.com/felixgeelhaar/osagent/infrastructure/guest/wasm"
)

// InspectionService answers read-only questions about components and past
// runs.
type InspectionService struct {
	loader *wasm.Loader
	runs   run.Store
	replay *Replay
}

// NewInspectionService creates a new inspection service. Any dependency may
// be nil when the caller does not need the matching queries.
func NewInspectionService(loader *wasm.Loader, runs run.Store, ledgers ledger.Store) *InspectionService {
	s := &InspectionService{loader: loader, runs: runs}
	if ledgers != nil {
		s.replay = NewReplay(ledgers)
	}
	return s
}

// ErrNotConfigured is returned for a query whose backing store is absent.
var ErrNotConfigured = errors.New("inspection source not configured")

// InspectComponent loads the component at path and checks the guest ABI.
func (s *InspectionService) InspectComponent(ctx context.Context, path string) (wasm.Report, error) {
	if s.loader == nil {
		return wasm.Report{}, ErrNotConfigured
	}
	c, err := s.loader.Load(path)
	if err != nil {
		return wasm.Report{}, err
	}
	return s.loader.Inspect(ctx, c)
}

// ListRuns returns runs from the run store.
func (s *InspectionService) ListRuns(ctx context.Context, filter run.ListFilter) ([]*agent.Run, error) {
	if s.runs == nil {
		return nil, ErrNotConfigured
	}
	return s.runs.List(ctx, filter)
}

// GetRun returns a run from the run store, falling back to rebuilding it
// from the audit ledger.
func (s *InspectionService) GetRun(ctx context.Context, id string) (*agent.Run, error) {
	if s.runs != nil {
		r, err := s.runs.Get(ctx, id)
		if err == nil || !errors.Is(err, run.ErrRunNotFound) || s.replay == nil {
			return r, err
		}
	}
	if s.replay == nil {
		return nil, ErrNotConfigured
	}
	r, err := s.replay.ReconstructRun(ctx, id)
	if errors.Is(err, ledger.ErrNoEntries) {
		return nil, run.ErrRunNotFound
	}
	return r, err
}

// Timeline returns the audit timeline of a run.
func (s *InspectionService) Timeline(ctx context.Context, id string) (*Timeline, error) {
	if s.replay == nil {
		return nil, ErrNotConfigured
	}
	return s.replay.NewTimeline(ctx, id)
}
