package api

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/ledger/store"
)

func touch(t *testing.T, s *Sessions, user string) {
	t.Helper()
	err := s.With(context.Background(), user, ledger.SectionPersonal, func(*ledger.Manager) error { return nil })
	require.NoError(t, err)
}

func TestSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	// GIVEN: A cache of two users
	s := NewSessions(store.NewMemoryBackend())
	s.MaxUsers = 2
	touch(t, s, "alice")
	touch(t, s, "bob")
	touch(t, s, "alice")

	// WHEN: A third user arrives
	touch(t, s, "carol")

	// THEN: bob, the least recently used, is dropped
	assert.Len(t, s.users, 2)
	assert.Contains(t, s.users, "alice")
	assert.Contains(t, s.users, "carol")
	assert.NotContains(t, s.users, "bob")
}

func TestSessions_EvictedUserReloadsFromStore(t *testing.T) {
	s := NewSessions(store.NewMemoryBackend())
	s.MaxUsers = 1
	ctx := context.Background()

	err := s.With(ctx, "alice", ledger.SectionPersonal, func(m *ledger.Manager) error {
		_, err := m.Add(ctx, ledger.NewDate(2024, 3, 1), "Food", "Tea", decimal.RequireFromString("3"))
		return err
	})
	require.NoError(t, err)
	touch(t, s, "bob")
	require.NotContains(t, s.users, "alice")

	err = s.With(ctx, "alice", ledger.SectionPersonal, func(m *ledger.Manager) error {
		require.Len(t, m.Records(), 1)
		assert.Equal(t, "Tea", m.Records()[0].Description)
		assert.Equal(t, 2, m.NextID())
		return nil
	})
	require.NoError(t, err)
}

func TestSessions_BusySessionIsKept(t *testing.T) {
	s := NewSessions(store.NewMemoryBackend())
	s.MaxUsers = 1
	ctx := context.Background()

	// WHEN: A new user arrives while alice's request is still running
	err := s.With(ctx, "alice", ledger.SectionPersonal, func(*ledger.Manager) error {
		touch(t, s, "bob")
		return nil
	})
	require.NoError(t, err)

	// THEN: alice was not dropped mid-request
	assert.Contains(t, s.users, "alice")
	assert.Contains(t, s.users, "bob")
}

func TestSessions_NoLimit(t *testing.T) {
	s := NewSessions(store.NewMemoryBackend())
	s.MaxUsers = 0

	for _, u := range []string{"a", "b", "c", "d"} {
		touch(t, s, u)
	}

	assert.Len(t, s.users, 4)
}
