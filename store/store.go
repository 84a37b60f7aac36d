/*
Package store opens the configured ledger backend.

BACKENDS:
  csv:    store/csvfile, one flat file per (section, user) under storage.dir
  sqlite: store/sqlite, one database at storage.sqlite_path

AUDIT:
  With audit.enabled the sqlite database also receives the audit log. For
  the csv backend the database is opened for the audit log alone.

USAGE:
  opened, err := store.Open(cfg)
  defer opened.Close()
  reg := ledger.NewRegistry(opened.Backend, user)
  mgr, err := reg.Manager(ctx, section, opened.ManagerOptions(cfg)...)
*/
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/warp/expense-ledger/config"
	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/store/csvfile"
	"github.com/warp/expense-ledger/store/sqlite"
)

// Opened is a ready backend plus its optional audit log.
type Opened struct {
	Backend ledger.Backend
	Audit   ledger.AuditLog // nil when auditing is off

	db *sqlite.Store
}

// Open builds the backend named by cfg.Storage.Backend.
func Open(cfg *config.Config) (*Opened, error) {
	o := &Opened{}

	needDB := cfg.Storage.Backend == config.BackendSQLite || cfg.Audit.Enabled
	if needDB {
		if cfg.Storage.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Storage.SQLitePath, err)
		}
		o.db = db
	}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		o.Backend = o.db
	case config.BackendCSV:
		o.Backend = csvfile.NewBackend(cfg.Storage.Dir)
	default:
		o.Close()
		return nil, fmt.Errorf("%w: storage.backend %q", config.ErrInvalidConfig, cfg.Storage.Backend)
	}
	if cfg.Audit.Enabled {
		o.Audit = o.db
	}

	slog.Debug("storage opened",
		"backend", cfg.Storage.Backend,
		"dir", cfg.Storage.Dir,
		"sqlite_path", cfg.Storage.SQLitePath,
		"audit", cfg.Audit.Enabled,
	)
	return o, nil
}

// ManagerOptions returns the Manager options implied by cfg.
func (o *Opened) ManagerOptions(cfg *config.Config) []ledger.Option {
	opts := []ledger.Option{ledger.WithRollback(cfg.Ledger.RollbackOnFailure)}
	if o.Audit != nil {
		opts = append(opts, ledger.WithAuditLog(o.Audit))
	}
	return opts
}

// Close releases the database, if one was opened.
func (o *Opened) Close() error {
	if o.db == nil {
		return nil
	}
	return o.db.Close()
}
