package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/domain/ledger"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr error
	}{
		{name: "defaults", cfg: config.StorageConfig{}},
		{name: "memory", cfg: config.StorageConfig{Runs: config.RunStorageConfig{Driver: "memory"}, Audit: config.AuditStorageConfig{Driver: "memory"}}},
		{
			name: "durable",
			cfg: config.StorageConfig{
				Runs:  config.RunStorageConfig{Driver: "sqlite", DSN: "file:" + filepath.Join(dir, "runs.db") + "?mode=rwc"},
				Audit: config.AuditStorageConfig{Driver: "badger", Dir: filepath.Join(dir, "audit")},
			},
		},
		{name: "unknown runs", cfg: config.StorageConfig{Runs: config.RunStorageConfig{Driver: "postgres"}}, wantErr: ErrUnknownDriver},
		{name: "unknown audit", cfg: config.StorageConfig{Audit: config.AuditStorageConfig{Driver: "s3"}}, wantErr: ErrUnknownDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := Open(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() {
				if err := s.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}()

			ctx := context.Background()
			r := agent.NewRun("run-1", "task")
			if err := s.Runs.Save(ctx, r); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			l := ledger.New("run-1")
			l.RecordRunStarted(r)
			if err := s.Ledgers.Append(ctx, l.Entries()...); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			entries, err := s.Ledgers.Load(ctx, "run-1")
			if err != nil || len(entries) != 1 {
				t.Errorf("Load() = %d entries, %v, want 1", len(entries), err)
			}
		})
	}
}
