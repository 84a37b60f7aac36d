/*
store.go - Persistence interfaces for section ledgers

PURPOSE:
  Defines the interface between the Manager and durable storage. The
  Manager keeps the whole ledger in memory and hands the full, ordered
  collection to Save after every mutation.

KEY INTERFACES:
  RecordStore: Load/Save one section's records for one user
  Backend:     Opens RecordStores for (section, user)
  AuditLog:    Append-only record of who changed what

CONTRACT:
  - Load never fails on malformed rows: they are skipped (tolerant reader).
  - Load of a missing file returns an empty slice and no error.
  - Save replaces the whole collection; a reader in the same process never
    observes a partial write.

IMPLEMENTATIONS:
  - store/csvfile: flat delimited file, one per section per user
  - store/sqlite:  SQLite table keyed by (section, user), plus the audit log
  - ledger/store:  in-memory store for tests
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORE - Whole-collection persistence
// =============================================================================

type RecordStore interface {
	// Load returns every stored record in store order.
	Load(ctx context.Context) ([]Record, error)

	// Save overwrites the stored collection with records, in order.
	Save(ctx context.Context, records []Record) error
}

// Backend opens the RecordStore backing one section of one user.
type Backend interface {
	Open(info SectionInfo, user string) (RecordStore, error)
}

// =============================================================================
// AUDIT LOG - Separate from the ledger, tracks who did what when
// =============================================================================

type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Actor     string // user owning the ledger
	Section   Section
	Action    AuditAction
	RecordID  int            // zero for bulk actions
	Payload   map[string]any // action-specific data
}

type AuditAction string

const (
	AuditRecordAdded   AuditAction = "record_added"
	AuditRecordUpdated AuditAction = "record_updated"
	AuditRecordDeleted AuditAction = "record_deleted"
	AuditBulkImported  AuditAction = "bulk_imported"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	Section *Section
	Actor   *string
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
}
