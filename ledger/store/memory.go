// Package store provides an in-memory ledger.RecordStore.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/warp/expense-ledger/ledger"
)

// ErrInjected is returned by Save while failures are injected.
var ErrInjected = errors.New("injected save failure")

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	records   []ledger.Record
	saves     int
	failSaves int
}

func NewMemory(records ...ledger.Record) *Memory {
	return &Memory{records: slices.Clone(records)}
}

func (m *Memory) Load(_ context.Context) ([]ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

// Save replaces the stored records. While failures are injected it returns
// ErrInjected and leaves the stored records untouched.
func (m *Memory) Save(_ context.Context, records []ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSaves > 0 {
		m.failSaves--
		return ErrInjected
	}
	m.records = slices.Clone(records)
	m.saves++
	return nil
}

// FailNextSaves makes the next n calls to Save fail.
func (m *Memory) FailNextSaves(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = n
}

// Saves returns how many saves succeeded.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// =============================================================================
// MEMORY BACKEND - One Memory per (section, user)
// =============================================================================

type MemoryBackend struct {
	mu     sync.Mutex
	stores map[key]*Memory
	opened int
}

type key struct {
	Section ledger.Section
	User    string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[key]*Memory)}
}

func (b *MemoryBackend) Open(info ledger.SectionInfo, user string) (ledger.RecordStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened++
	return b.storeLocked(info.Key, user), nil
}

func (b *MemoryBackend) storeLocked(section ledger.Section, user string) *Memory {
	k := key{Section: section, User: user}
	if m, ok := b.stores[k]; ok {
		return m
	}
	m := NewMemory()
	b.stores[k] = m
	return m
}

// Opened returns how many times Open was called.
func (b *MemoryBackend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Store returns the Memory behind (section, user), creating it if needed.
func (b *MemoryBackend) Store(section ledger.Section, user string) *Memory {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storeLocked(section, user)
}
