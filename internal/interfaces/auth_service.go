package interfaces

import (
	"context"

	"github.com/wkeng/jiradash/internal/models"
)

// AuthService runs the per-session OAuth2 authorization-code state machine.
// Each session moves UNAUTHENTICATED -> AWAITING_CALLBACK -> TOKEN_EXCHANGE
// -> VALIDATING_INSTANCE -> AUTHENTICATED, with FAILED reachable from any
// non-terminal state. No token state is shared across sessions.
type AuthService interface {
	// Enabled reports whether at least one OAuth provider is configured.
	Enabled() bool

	// ProviderEnabled reports whether the given provider is configured.
	ProviderEnabled(provider models.AuthProvider) bool

	// LoginURL issues a fresh anti-forgery state value for the session and
	// returns the provider's authorization URL to redirect the user agent to.
	LoginURL(sess *models.Session, provider models.AuthProvider) (string, error)

	// HandleCallback processes the identity provider redirect. It validates
	// the echoed state, exchanges the authorization code, fetches the user
	// profile, and confirms the account belongs to the allowed instance.
	// On any failure the session's auth record moves to FAILED and the
	// typed error (StateMismatchError, TokenExchangeError,
	// UnauthorizedInstanceError) is returned for the login page to display.
	HandleCallback(ctx context.Context, sess *models.Session, state, code string) error

	// Logout clears all session auth state.
	Logout(sess *models.Session)
}
