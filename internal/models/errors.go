package models

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates a missing or invalid configuration value.
// Fatal at startup; at query time it surfaces as a "not configured" message.
type ConfigurationError struct {
	Key     string // YAML key, e.g. "jira.url"
	EnvVar  string // environment variable, e.g. "JIRA_URL"
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.EnvVar != "" {
		return fmt.Sprintf("configuration error: %s (set %s or %s in config.yaml)", e.Message, e.EnvVar, e.Key)
	}
	return fmt.Sprintf("configuration error: %s (%s)", e.Message, e.Key)
}

// NewConfigurationError creates a ConfigurationError for a missing key.
func NewConfigurationError(key, envVar, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, EnvVar: envVar, Message: message}
}

// AuthenticationError indicates rejected credentials (401/403 from Jira or
// an expired OAuth token). Recovery is re-login; never retried automatically.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
	}
	return "authentication failed: " + e.Message
}

// ConnectionError indicates the remote instance was unreachable.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StateMismatchError indicates the OAuth callback carried a state value that
// does not match one issued at login (CSRF mitigation).
type StateMismatchError struct {
	Reason string
}

func (e *StateMismatchError) Error() string {
	return "oauth state mismatch: " + e.Reason
}

// TokenExchangeError indicates the authorization-code exchange failed.
// Root causes are operator configuration errors (redirect URI mismatch,
// stale client credentials); never retried automatically.
type TokenExchangeError struct {
	Provider string
	Err      error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange with %s failed: %v", e.Provider, e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// UnauthorizedInstanceError indicates the authenticated account does not
// belong to the allowed Jira instance. The token is discarded immediately.
type UnauthorizedInstanceError struct {
	Email    string
	Instance string
}

func (e *UnauthorizedInstanceError) Error() string {
	return fmt.Sprintf("account %s is not authorized for instance %s", e.Email, e.Instance)
}

// QueryError indicates a Jira query operation failed. Carries the operation
// name so pages can show which section failed while the rest render.
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an AuthenticationError anywhere in its chain.
func IsAuthError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsConfigurationError reports whether err is a ConfigurationError anywhere in its chain.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
