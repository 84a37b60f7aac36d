/*
manager.go - In-memory ledger of one section, the durability boundary

PURPOSE:
  The Manager caches one section's records for one user, assigns ids,
  maintains the advisory category set and persists the whole collection
  after every mutation.

CRITICAL INVARIANTS:
  1. UNIQUE IDS: every record id in the ledger is distinct
  2. MONOTONIC IDS: nextID = max(loaded ids, 0) + 1, then +1 per add;
     deleted ids are never handed out again by this Manager
  3. WHOLE-FILE SAVE: each mutation saves the entire collection once
     (BulkAdd saves once for the batch, and only if something was added)
  4. SOFT CATEGORIES: the category set only grows; deleting the last
     record of a category keeps the category

FAILURE SEMANTICS:
  A failed Save returns a *PersistenceError. With rollback enabled (the
  default) the records, next id and category set are restored to their
  state before the mutation, so memory matches what is on disk. With
  rollback disabled the mutation stays in memory and may diverge from disk.

CONCURRENCY:
  None. One Manager per (section, user); callers serialize access.
*/
package ledger

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// OPTIONS
// =============================================================================

type Option func(*Manager)

// WithAuditLog records every successful mutation to log.
func WithAuditLog(log AuditLog) Option {
	return func(m *Manager) { m.audit = log }
}

// WithRollback controls whether in-memory state is restored after a failed save.
func WithRollback(enabled bool) Option {
	return func(m *Manager) { m.rollback = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	store      RecordStore
	info       SectionInfo
	user       string
	records    []Record
	nextID     int
	categories map[string]struct{}

	audit    AuditLog
	rollback bool
	logger   *slog.Logger
	now      func() time.Time
}

// BulkResult reports the outcome of BulkAdd.
type BulkResult struct {
	Added   int
	Skipped int
}

// NewManager loads the section's records from store and prepares the id
// counter and category set.
func NewManager(ctx context.Context, store RecordStore, info SectionInfo, user string, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:    store,
		info:     info,
		user:     user,
		rollback: true,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	records, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.records = records
	m.nextID = computeNextID(records)
	m.categories = seedCategories(records)

	m.logger.Debug("ledger loaded",
		"section", info.Key,
		"user", user,
		"records", len(records),
		"next_id", m.nextID,
	)
	return m, nil
}

func computeNextID(records []Record) int {
	maxID := 0
	for _, r := range records {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID + 1
}

func seedCategories(records []Record) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range records {
		set[r.Category] = struct{}{}
	}
	if len(set) == 0 {
		for _, c := range DefaultCategories {
			set[c] = struct{}{}
		}
	}
	return set
}

func (m *Manager) Section() SectionInfo { return m.info }
func (m *Manager) User() string         { return m.user }

// =============================================================================
// MUTATIONS
// =============================================================================

// Add appends a new record with the next id and persists the ledger.
// Inputs are expected to be validated by the caller.
func (m *Manager) Add(ctx context.Context, date Date, category, description string, amount decimal.Decimal) (Record, error) {
	snap := m.snapshot()

	rec := Record{
		ID:          m.nextID,
		Date:        date,
		Category:    category,
		Description: description,
		Amount:      roundAmount(amount),
	}
	m.records = append(m.records, rec)
	m.categories[category] = struct{}{}
	m.nextID++

	if err := m.persist(ctx, "add", snap); err != nil {
		return Record{}, err
	}

	m.logger.Info("record added", "section", m.info.Key, "user", m.user, "id", rec.ID)
	m.recordAudit(ctx, AuditRecordAdded, rec.ID, recordPayload(rec))
	return rec, nil
}

// BulkAdd coerces each candidate and appends the ones that pass. Rows that
// fail are counted as skipped; processing always continues. The ledger is
// saved once at the end if at least one record was added.
func (m *Manager) BulkAdd(ctx context.Context, candidates []Candidate) (BulkResult, error) {
	snap := m.snapshot()

	var res BulkResult
	for _, c := range candidates {
		rec, err := c.Coerce()
		if err != nil {
			m.logger.Debug("bulk row skipped", "section", m.info.Key, "line", c.Line, "error", err)
			res.Skipped++
			continue
		}
		rec.ID = m.nextID
		m.records = append(m.records, rec)
		m.categories[rec.Category] = struct{}{}
		m.nextID++
		res.Added++
	}

	if res.Added == 0 {
		return res, nil
	}
	if err := m.persist(ctx, "bulk add", snap); err != nil {
		return res, err
	}

	m.logger.Info("bulk import applied",
		"section", m.info.Key,
		"user", m.user,
		"added", res.Added,
		"skipped", res.Skipped,
	)
	m.recordAudit(ctx, AuditBulkImported, 0, map[string]any{
		"added":   res.Added,
		"skipped": res.Skipped,
	})
	return res, nil
}

// Update replaces the record with id in place. It reports false, and saves
// nothing, when no record has that id.
func (m *Manager) Update(ctx context.Context, id int, date Date, category, description string, amount decimal.Decimal) (bool, error) {
	i := m.indexOf(id)
	if i < 0 {
		return false, nil
	}
	snap := m.snapshot()

	rec := Record{
		ID:          id,
		Date:        date,
		Category:    category,
		Description: description,
		Amount:      roundAmount(amount),
	}
	m.records[i] = rec
	m.categories[category] = struct{}{}

	if err := m.persist(ctx, "update", snap); err != nil {
		return false, err
	}

	m.logger.Info("record updated", "section", m.info.Key, "user", m.user, "id", id)
	m.recordAudit(ctx, AuditRecordUpdated, id, recordPayload(rec))
	return true, nil
}

// Delete removes the record with id. It reports false when none matched.
func (m *Manager) Delete(ctx context.Context, id int) (bool, error) {
	i := m.indexOf(id)
	if i < 0 {
		return false, nil
	}
	snap := m.snapshot()

	removed := m.records[i]
	m.records = slices.Delete(m.records, i, i+1)

	if err := m.persist(ctx, "delete", snap); err != nil {
		return false, err
	}

	m.logger.Info("record deleted", "section", m.info.Key, "user", m.user, "id", id)
	m.recordAudit(ctx, AuditRecordDeleted, id, recordPayload(removed))
	return true, nil
}

// AddCategory adds a category to the advisory set without touching records.
// Blank names are ignored. The set is not persisted on its own.
func (m *Manager) AddCategory(category string) {
	category = strings.TrimSpace(category)
	if category == "" {
		return
	}
	m.categories[category] = struct{}{}
}

// =============================================================================
// QUERIES
// =============================================================================

// FilterByMonth returns the records dated in year/month, in store order.
func (m *Manager) FilterByMonth(year int, month time.Month) []Record {
	var out []Record
	for _, r := range m.records {
		if r.Date.InMonth(year, month) {
			out = append(out, r)
		}
	}
	return out
}

// Records returns a copy of the full ledger in store order.
func (m *Manager) Records() []Record {
	return slices.Clone(m.records)
}

// Record returns the record with id, if any.
func (m *Manager) Record(id int) (Record, bool) {
	i := m.indexOf(id)
	if i < 0 {
		return Record{}, false
	}
	return m.records[i], true
}

// Categories returns the known categories, sorted.
func (m *Manager) Categories() []string {
	return slices.Sorted(maps.Keys(m.categories))
}

// NextID returns the id the next added record will receive.
func (m *Manager) NextID() int { return m.nextID }

func (m *Manager) indexOf(id int) int {
	return slices.IndexFunc(m.records, func(r Record) bool { return r.ID == id })
}

// =============================================================================
// PERSISTENCE + ROLLBACK
// =============================================================================

type managerSnapshot struct {
	records    []Record
	nextID     int
	categories map[string]struct{}
}

func (m *Manager) snapshot() managerSnapshot {
	return managerSnapshot{
		records:    slices.Clone(m.records),
		nextID:     m.nextID,
		categories: maps.Clone(m.categories),
	}
}

func (m *Manager) restore(s managerSnapshot) {
	m.records = s.records
	m.nextID = s.nextID
	m.categories = s.categories
}

func (m *Manager) persist(ctx context.Context, op string, snap managerSnapshot) error {
	err := m.store.Save(ctx, m.records)
	if err == nil {
		return nil
	}
	if m.rollback {
		m.restore(snap)
	}
	m.logger.Error("ledger save failed",
		"section", m.info.Key,
		"user", m.user,
		"op", op,
		"rolled_back", m.rollback,
		"error", err,
	)
	return &PersistenceError{Op: op, Section: m.info.Key, Err: err}
}

func (m *Manager) recordAudit(ctx context.Context, action AuditAction, recordID int, payload map[string]any) {
	if m.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: m.now().UTC(),
		Actor:     m.user,
		Section:   m.info.Key,
		Action:    action,
		RecordID:  recordID,
		Payload:   payload,
	}
	if err := m.audit.Append(ctx, entry); err != nil {
		m.logger.Warn("audit append failed", "action", action, "error", err)
	}
}

func recordPayload(r Record) map[string]any {
	return map[string]any{
		"date":        r.Date.String(),
		"category":    r.Category,
		"description": r.Description,
		"amount":      FormatAmount(r.Amount),
	}
}
