package models

import "time"

// AuthProvider identifies which identity provider authenticated a session.
type AuthProvider string

const (
	ProviderJira      AuthProvider = "jira"
	ProviderMicrosoft AuthProvider = "microsoft"
)

// AuthState is the OAuth2 authenticator state machine position for a session.
type AuthState string

const (
	StateUnauthenticated    AuthState = "UNAUTHENTICATED"
	StateAwaitingCallback   AuthState = "AWAITING_CALLBACK"
	StateTokenExchange      AuthState = "TOKEN_EXCHANGE"
	StateValidatingInstance AuthState = "VALIDATING_INSTANCE"
	StateAuthenticated      AuthState = "AUTHENTICATED"
	StateFailed             AuthState = "FAILED"
)

// UserInfo is the profile returned by the identity provider.
type UserInfo struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"picture"`
}

// SessionAuth holds a session's authentication record. Owned exclusively by
// the session; never persisted to disk.
type SessionAuth struct {
	State         AuthState    `json:"state"`
	Authenticated bool         `json:"authenticated"`
	Provider      AuthProvider `json:"provider,omitempty"`
	AccessToken   string       `json:"-"`
	RefreshToken  string       `json:"-"`
	TokenExpiry   time.Time    `json:"-"`
	CloudID       string       `json:"-"`
	User          *UserInfo    `json:"user,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
}

// Clear resets the record to the unauthenticated state, discarding tokens.
func (a *SessionAuth) Clear() {
	a.State = StateUnauthenticated
	a.Authenticated = false
	a.Provider = ""
	a.AccessToken = ""
	a.RefreshToken = ""
	a.TokenExpiry = time.Time{}
	a.CloudID = ""
	a.User = nil
}

// Fail moves the record to the terminal FAILED state. Any token obtained so
// far is discarded.
func (a *SessionAuth) Fail(err error) {
	a.Clear()
	a.State = StateFailed
	if err != nil {
		a.LastError = err.Error()
	}
}
