package paging

import (
	"sync"
	"time"

	"ninex/internal/query"
)

// Session is the per-login listing state: one navigator plus the cached allow-list.
type Session struct {
	mu        sync.Mutex
	nav       *Navigator
	creators  query.Creators
	hasAccess bool
	lastSeen  time.Time
}

// With runs fn while holding the session lock.
func (s *Session) With(fn func(nav *Navigator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.nav)
}

// Creators returns the cached allow-list, if one was stored.
func (s *Session) Creators() (query.Creators, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creators, s.hasAccess
}

func (s *Session) SetCreators(c query.Creators) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creators = c
	s.hasAccess = true
}

// Store holds sessions by id and drops the ones idle longer than ttl.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, sessions: map[string]*Session{}, now: time.Now}
}

// Session returns the state for id, creating it on first use.
func (s *Store) Session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if !ok || now.Sub(sess.lastSeen) > s.ttl {
		sess = &Session{nav: NewNavigator()}
		s.sessions[id] = sess
	}
	sess.lastSeen = now
	return sess
}

// Forget drops the state for id (logout, role change).
func (s *Store) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep evicts idle sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
