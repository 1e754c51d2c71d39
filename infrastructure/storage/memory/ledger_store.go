package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/osagent/domain/ledger"
)

// LedgerStore is an in-memory implementation of ledger.Store.
type LedgerStore struct {
	entries map[string][]ledger.Entry // runID -> entries
	mu      sync.RWMutex
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries: make(map[string][]ledger.Entry),
	}
}

// Append persists entries in order.
func (s *LedgerStore) Append(ctx context.Context, entries ...ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e.RunID == "" {
			return ledger.ErrInvalidEntry
		}
		s.entries[e.RunID] = append(s.entries[e.RunID], e)
	}
	return nil
}

// Load returns the entries of a run in the order they were appended.
func (s *LedgerStore) Load(ctx context.Context, runID string) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.entries[runID]
	if !ok {
		return nil, ledger.ErrNoEntries
	}

	result := make([]ledger.Entry, len(entries))
	copy(result, entries)
	return result, nil
}

// Close is a no-op.
func (s *LedgerStore) Close() error {
	return nil
}

var _ ledger.Store = (*LedgerStore)(nil)
