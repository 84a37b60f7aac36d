package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-ledger/config"
	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/store/csvfile"
	"github.com/warp/expense-ledger/store/sqlite"
)

func testConfig(t *testing.T, backend string, audit bool) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{Backend: backend, Dir: dir, SQLitePath: filepath.Join(dir, "ledger.db")},
		Audit:   config.AuditConfig{Enabled: audit},
		Ledger:  config.LedgerConfig{User: "alice", RollbackOnFailure: true},
	}
}

func TestOpen_CSVWithoutAudit(t *testing.T) {
	cfg := testConfig(t, config.BackendCSV, false)

	o, err := Open(cfg)
	require.NoError(t, err)
	defer o.Close()

	assert.IsType(t, csvfile.Backend{}, o.Backend)
	assert.Nil(t, o.Audit)
	assert.Len(t, o.ManagerOptions(cfg), 1)
	_, err = os.Stat(cfg.Storage.SQLitePath)
	assert.True(t, os.IsNotExist(err), "no database without audit")
}

func TestOpen_CSVWithSQLiteAudit(t *testing.T) {
	// GIVEN: csv records with the audit log enabled
	cfg := testConfig(t, config.BackendCSV, true)
	o, err := Open(cfg)
	require.NoError(t, err)
	defer o.Close()
	ctx := context.Background()

	// WHEN: A record is added
	mgr, err := ledger.NewRegistry(o.Backend, "alice").Manager(ctx, ledger.SectionPersonal, o.ManagerOptions(cfg)...)
	require.NoError(t, err)
	_, err = mgr.Add(ctx, ledger.NewDate(2024, 1, 2), "Food", "Soup", decimal.RequireFromString("4"))
	require.NoError(t, err)

	// THEN: The record is in the flat file and the audit entry in sqlite
	_, err = os.Stat(filepath.Join(cfg.Storage.Dir, "personal_expenses_alice.csv"))
	assert.NoError(t, err)
	entries, err := o.Audit.Query(ctx, ledger.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite, false)

	o, err := Open(cfg)
	require.NoError(t, err)
	defer o.Close()

	assert.IsType(t, &sqlite.Store{}, o.Backend)
	assert.Nil(t, o.Audit)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(testConfig(t, "postgres", false))

	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
