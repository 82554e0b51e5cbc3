package interfaces

import (
	"net/http"

	"github.com/wkeng/jiradash/internal/models"
)

// SessionStore manages per-browser sessions keyed by an HTTP cookie.
// Sessions hold transient auth state only; nothing is persisted to disk.
type SessionStore interface {
	// GetOrCreate returns the session for the request's cookie, creating a
	// new session (and setting the cookie) when none exists or it expired.
	GetOrCreate(w http.ResponseWriter, r *http.Request) *models.Session

	// Get returns the session for the request's cookie without creating one.
	Get(r *http.Request) (*models.Session, bool)

	// Destroy removes the session and expires the cookie.
	Destroy(w http.ResponseWriter, sess *models.Session)
}
