// Package storage opens the run and audit backends selected by the host
// configuration.
package storage

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/domain/run"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
	"github.com/felixgeelhaar/osagent/infrastructure/storage/badger"
	"github.com/felixgeelhaar/osagent/infrastructure/storage/memory"
	"github.com/felixgeelhaar/osagent/infrastructure/storage/sqlite"
)

// ErrUnknownDriver is returned for a driver name no backend serves.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Stores holds the opened backends.
type Stores struct {
	Runs    run.Store
	Ledgers ledger.Store

	closers []func() error
}

// Open opens both backends. On error nothing is left open.
func Open(cfg config.StorageConfig) (*Stores, error) {
	s := &Stores{}

	switch cfg.Runs.Driver {
	case "", "memory":
		s.Runs = memory.NewRunStore()
	case "sqlite":
		runs, err := sqlite.NewRunStore(sqlite.DefaultConfig(), sqlite.WithDSN(cfg.Runs.DSN))
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		s.Runs = runs
		s.closers = append(s.closers, runs.Close)
	default:
		return nil, fmt.Errorf("%w: runs: %s", ErrUnknownDriver, cfg.Runs.Driver)
	}

	switch cfg.Audit.Driver {
	case "", "memory":
		s.Ledgers = memory.NewLedgerStore()
	case "badger":
		ledgers, err := badger.NewLedgerStore(badger.DefaultConfig(), badger.WithDir(cfg.Audit.Dir))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		s.Ledgers = ledgers
	default:
		_ = s.Close()
		return nil, fmt.Errorf("%w: audit: %s", ErrUnknownDriver, cfg.Audit.Driver)
	}
	s.closers = append(s.closers, s.Ledgers.Close)

	logging.Debug().
		Add(logging.Str("runs", driverName(cfg.Runs.Driver))).
		Add(logging.Str("audit", driverName(cfg.Audit.Driver))).
		Msg("storage opened")
	return s, nil
}

// Close closes every opened backend.
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func driverName(d string) string {
	if d == "" {
		return "memory"
	}
	return d
}
