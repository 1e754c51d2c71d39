package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// LedgerStore is a BadgerDB-backed implementation of ledger.Store.
//
// Key format: prefix + "ledger:" + runID + ":" + seq (8 bytes, big-endian),
// so a prefix scan returns a run's entries in order.
type LedgerStore struct {
	db        *badger.DB
	keyPrefix string
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
	closeOnce sync.Once
}

// NewLedgerStore opens a BadgerDB ledger store with the given configuration.
func NewLedgerStore(cfg Config, opts ...Option) (*LedgerStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &LedgerStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *LedgerStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

func (s *LedgerStore) runPrefix(runID string) []byte {
	return []byte(s.keyPrefix + "ledger:" + runID + ":")
}

func (s *LedgerStore) entryKey(runID string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(s.runPrefix(runID), seq)
}

// Append persists entries in a single transaction.
func (s *LedgerStore) Append(ctx context.Context, entries ...ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if e.RunID == "" {
				return ledger.ErrInvalidEntry
			}
			data, err := encodeEntry(e)
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", e.Seq, err)
			}
			if err := txn.Set(s.entryKey(e.RunID, e.Seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Trace().
		Add(logging.RunID(entries[0].RunID)).
		Add(logging.Count("entries", len(entries))).
		Msg("ledger entries persisted")
	return nil
}

// Load returns the entries of a run ordered by Seq.
func (s *LedgerStore) Load(ctx context.Context, runID string) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []ledger.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.runPrefix(runID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				e, err := decodeEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ledger.ErrNoEntries
	}
	return entries, nil
}

// Close stops GC and closes the database.
func (s *LedgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.gcStop)
		s.gcWg.Wait()
		err = s.db.Close()
	})
	return err
}

var _ ledger.Store = (*LedgerStore)(nil)
