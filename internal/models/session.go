package models

import (
	"sync"
	"time"
)

// Session is one browser session. The auth record it owns is never shared
// across sessions and never persisted.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	auth     SessionAuth
}

// NewSession creates a session in the unauthenticated state.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
		auth:      SessionAuth{State: StateUnauthenticated},
	}
}

// Touch records activity for idle-expiry purposes.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the most recent activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Auth returns a copy of the session's auth record.
func (s *Session) Auth() SessionAuth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// UpdateAuth mutates the auth record under the session lock.
func (s *Session) UpdateAuth(fn func(*SessionAuth)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.auth)
}

// Authenticated reports whether the session holds a valid auth record.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth.Authenticated
}
