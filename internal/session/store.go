package session

import (
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Complete when a later login or logout has
// already changed the store.
var ErrSuperseded = errors.New("session: attempt superseded")

// Attempt captures the store generation at the start of an asynchronous login.
type Attempt struct {
	gen uint64
}

// Store owns at most one Session. It is either absent or present; Login moves
// it to present and Logout back to absent.
type Store struct {
	mu      sync.Mutex
	current *Session
	gen     uint64
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Restore returns a store holding sess. A session without identity or with an
// unknown role yields an empty store.
func Restore(sess Session) *Store {
	s := NewStore()
	if sess.Identity == "" || !sess.Role.Valid() {
		return s
	}
	s.current = &sess
	return s
}

// Login replaces any existing session.
func (s *Store) Login(identity string, role Role) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(identity, role)
}

// Logout clears the session. Calling it on an empty store is a no-op apart
// from invalidating outstanding attempts.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.gen++
}

// Current returns a copy of the session, if any.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Begin starts a login whose outcome is known later, e.g. after a credential
// check against a backend.
func (s *Store) Begin() Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Attempt{gen: s.gen}
}

// Complete applies the login started by a if nothing has changed the store
// since. Otherwise the store is left untouched and ErrSuperseded is returned.
func (s *Store) Complete(a Attempt, identity string, role Role) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.gen != s.gen {
		return Session{}, ErrSuperseded
	}
	return s.loginLocked(identity, role), nil
}

// Generation increases with every mutation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Store) loginLocked(identity string, role Role) Session {
	sess := Session{Identity: identity, Role: role, IssuedAt: s.now().UTC()}
	s.current = &sess
	s.gen++
	return sess
}
