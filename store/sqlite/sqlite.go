/*
Package sqlite provides a SQLite-backed implementation of the ledger storage interfaces.

PURPOSE:
  Alternate persistence for section ledgers, selected with
  storage.backend=sqlite. One database holds every (section, user) ledger
  plus the audit log.

INTERFACES IMPLEMENTED:
  ledger.Backend:     Store.Open hands out per-(section, user) RecordStores
  ledger.RecordStore: RecordStore (scoped view of the records table)
  ledger.AuditLog:    Store.Append / Store.Query

KEY TABLES:
  records:   One row per record, keyed by (section, user_id, position).
             position keeps the Manager's append order across reloads.
  audit_log: Append-only history of successful mutations.

WHOLE-COLLECTION SAVE:
  RecordStore.Save deletes the (section, user) rows and inserts the new
  collection inside one SQL transaction. A failed save leaves the previous
  rows untouched.

CONCURRENCY:
  Uses sync.RWMutex around writes. SQLite is opened in WAL mode so readers
  do not block each other.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  reg := ledger.NewRegistry(store, "alice")
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/expense-ledger/ledger"
)

// timestampLayout sorts lexicographically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store owns the database connection.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ledger.Backend     = (*Store)(nil)
	_ ledger.AuditLog    = (*Store)(nil)
	_ ledger.RecordStore = (*RecordStore)(nil)
)

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		section TEXT NOT NULL,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id INTEGER NOT NULL,
		date TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (section, user_id, position)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_id
		ON records(section, user_id, id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor TEXT NOT NULL,
		section TEXT NOT NULL,
		action TEXT NOT NULL,
		record_id INTEGER,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_section_time
		ON audit_log(section, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BACKEND (ledger.Backend interface)
// =============================================================================

// Open returns the RecordStore of section for user.
func (s *Store) Open(info ledger.SectionInfo, user string) (ledger.RecordStore, error) {
	return s.RecordStore(info.Key, user), nil
}

// RecordStore returns a view of the records table scoped to (section, user).
func (s *Store) RecordStore(section ledger.Section, user string) *RecordStore {
	return &RecordStore{parent: s, section: section, user: user}
}

// =============================================================================
// RECORD STORE (ledger.RecordStore interface)
// =============================================================================

type RecordStore struct {
	parent  *Store
	section ledger.Section
	user    string
}

// Load returns the scoped records ordered by position. Rows whose date or
// amount no longer parse are skipped, matching the flat-file reader.
func (rs *RecordStore) Load(ctx context.Context) ([]ledger.Record, error) {
	rs.parent.mu.RLock()
	defer rs.parent.mu.RUnlock()

	rows, err := rs.parent.db.QueryContext(ctx, `
		SELECT id, date, category, description, amount
		FROM records
		WHERE section = ? AND user_id = ?
		ORDER BY position ASC
	`, string(rs.section), rs.user)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []ledger.Record{}
	for rows.Next() {
		var (
			id                          int
			date, category, desc, value string
		)
		if err := rows.Scan(&id, &date, &category, &desc, &value); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		d, err := ledger.ParseDate(date)
		if err != nil {
			continue
		}
		amount, err := ledger.ParseAmount(value)
		if err != nil {
			continue
		}
		records = append(records, ledger.Record{
			ID:          id,
			Date:        d,
			Category:    category,
			Description: desc,
			Amount:      amount,
		})
	}

	return records, rows.Err()
}

// Save replaces every scoped row with records, atomically.
func (rs *RecordStore) Save(ctx context.Context, records []ledger.Record) error {
	rs.parent.mu.Lock()
	defer rs.parent.mu.Unlock()

	tx, err := rs.parent.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM records WHERE section = ? AND user_id = ?",
		string(rs.section), rs.user,
	); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (section, user_id, position, id, date, category, description, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			string(rs.section), rs.user, i,
			r.ID, r.Date.String(), r.Category, r.Description, ledger.FormatAmount(r.Amount),
		); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("duplicate record id %d: %w", r.ID, err)
			}
			return fmt.Errorf("failed to insert record %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

// Append stores one audit entry.
func (s *Store) Append(ctx context.Context, entry ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor, section, action, record_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Timestamp.UTC().Format(timestampLayout),
		entry.Actor,
		string(entry.Section),
		string(entry.Action),
		nullInt(entry.RecordID),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Query returns audit entries matching filter, oldest first.
func (s *Store) Query(ctx context.Context, filter ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Section != nil {
		where = append(where, "section = ?")
		args = append(args, string(*filter.Section))
	}
	if filter.Actor != nil {
		where = append(where, "actor = ?")
		args = append(args, *filter.Actor)
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.From.UTC().Format(timestampLayout))
	}
	if filter.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.To.UTC().Format(timestampLayout))
	}

	query := "SELECT id, timestamp, actor, section, action, record_id, payload_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var (
			e           ledger.AuditEntry
			ts          string
			recordID    sql.NullInt64
			payloadJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Section, &e.Action, &recordID, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(timestampLayout, ts)
		e.RecordID = int(recordID.Int64)
		if payloadJSON.Valid && payloadJSON.String != "" {
			json.Unmarshal([]byte(payloadJSON.String), &e.Payload)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

func nullInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
