// Package session provides the in-memory, cookie-keyed session store. A
// session lives for the browser's visit only; there is no on-disk state.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/models"
)

// CookieName is the session cookie set on first contact.
const CookieName = "jiradash_session"

// DefaultIdleExpiry is how long a session survives without activity.
const DefaultIdleExpiry = 8 * time.Hour

// Store holds live sessions keyed by the cookie value. Expired sessions are
// swept lazily on access; there is no background worker.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*models.Session
	idleExpiry time.Duration
	secure     bool
	logger     arbor.ILogger
}

// NewStore creates a session store with the given idle expiry.
func NewStore(idleExpiry time.Duration, secure bool, logger arbor.ILogger) *Store {
	if idleExpiry <= 0 {
		idleExpiry = DefaultIdleExpiry
	}
	return &Store{
		sessions:   make(map[string]*models.Session),
		idleExpiry: idleExpiry,
		secure:     secure,
		logger:     logger,
	}
}

// GetOrCreate returns the request's session, creating one (and setting the
// cookie) when none exists or the existing one expired.
func (s *Store) GetOrCreate(w http.ResponseWriter, r *http.Request) *models.Session {
	if sess, ok := s.Get(r); ok {
		sess.Touch()
		return sess
	}

	sess := models.NewSession(uuid.NewString())

	s.mu.Lock()
	s.sweepLocked()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Debug().Str("session", sess.ID).Msg("Created session")
	return sess
}

// Get returns the request's session without creating one.
func (s *Store) Get(r *http.Request) (*models.Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[cookie.Value]
	if !ok {
		return nil, false
	}
	if time.Since(sess.LastSeen()) > s.idleExpiry {
		delete(s.sessions, sess.ID)
		return nil, false
	}
	return sess, true
}

// Destroy removes the session and expires the cookie.
func (s *Store) Destroy(w http.ResponseWriter, sess *models.Session) {
	if sess == nil {
		return
	}

	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	s.logger.Debug().Str("session", sess.ID).Msg("Destroyed session")
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

// sweepLocked drops idle-expired sessions. Caller holds s.mu.
func (s *Store) sweepLocked() {
	cutoff := time.Now().Add(-s.idleExpiry)
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
