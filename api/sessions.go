/*
sessions.go - Per-user ledger managers behind a lock

PURPOSE:
  The ledger core assumes a single caller. The HTTP server has many, so every
  request runs its ledger work inside Sessions.With, which serialises access
  per user and keeps one Manager per (user, section).

LIFECYCLE:
  A user's Registry is created on first request. A section's Manager is
  loaded from its store on first use and reused afterwards, so ids keep
  increasing monotonically across requests.

EVICTION:
  At most MaxUsers sessions are cached. When a new user arrives at the cap,
  the least recently used idle session is dropped; its ledgers are reloaded
  from their stores on the user's next request. Sessions in use are never
  dropped, so the cache may briefly exceed the cap under load.
*/
package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/warp/expense-ledger/ledger"
)

// DefaultMaxUsers bounds the session cache of NewSessions.
const DefaultMaxUsers = 256

type Sessions struct {
	// MaxUsers caps cached sessions. Zero or less disables eviction.
	MaxUsers int

	backend ledger.Backend
	opts    []ledger.Option

	mu    sync.Mutex
	users map[string]*session
	tick  uint64
}

type session struct {
	mu       sync.Mutex
	registry *ledger.Registry
	managers map[ledger.Section]*ledger.Manager

	// guarded by Sessions.mu
	lastUsed uint64
	refs     int
}

// NewSessions serves ledgers from backend. opts are applied to every Manager.
func NewSessions(backend ledger.Backend, opts ...ledger.Option) *Sessions {
	return &Sessions{
		MaxUsers: DefaultMaxUsers,
		backend:  backend,
		opts:     opts,
		users:    make(map[string]*session),
	}
}

func (s *Sessions) acquire(user string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.users[user]
	if !ok {
		s.evictLocked()
		sess = &session{
			registry: ledger.NewRegistry(s.backend, user),
			managers: make(map[ledger.Section]*ledger.Manager),
		}
		s.users[user] = sess
	}
	s.tick++
	sess.lastUsed = s.tick
	sess.refs++
	return sess
}

func (s *Sessions) release(sess *session) {
	s.mu.Lock()
	sess.refs--
	s.mu.Unlock()
}

// evictLocked drops the least recently used idle session when the cache is full.
func (s *Sessions) evictLocked() {
	if s.MaxUsers <= 0 || len(s.users) < s.MaxUsers {
		return
	}
	var (
		victim string
		oldest *session
	)
	for user, sess := range s.users {
		if sess.refs > 0 {
			continue
		}
		if oldest == nil || sess.lastUsed < oldest.lastUsed {
			victim, oldest = user, sess
		}
	}
	if oldest == nil {
		return
	}
	delete(s.users, victim)
	slog.Debug("session evicted", "user", victim, "cached", len(s.users))
}

// With runs fn with the Manager of (user, section) while holding the user's lock.
func (s *Sessions) With(ctx context.Context, user string, section ledger.Section, fn func(*ledger.Manager) error) error {
	sess := s.acquire(user)
	defer s.release(sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	mgr, ok := sess.managers[section]
	if !ok {
		opts := append([]ledger.Option{
			ledger.WithLogger(slog.Default().With("user", user, "section", section)),
		}, s.opts...)

		var err error
		mgr, err = sess.registry.Manager(ctx, section, opts...)
		if err != nil {
			return err
		}
		sess.managers[section] = mgr
	}
	return fn(mgr)
}
