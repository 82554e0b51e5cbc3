package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wkeng/jiradash/internal/models"
)

// stateExpiry bounds how long an issued state value stays redeemable.
const stateExpiry = 10 * time.Minute

type issuedState struct {
	sessionID string
	provider  models.AuthProvider
	createdAt time.Time
}

// stateStore issues and validates the anti-forgery state values used in the
// authorization-code flow. Each value is single-use, bound to one session,
// and carries a provider tag so a single callback route can dispatch.
// Expired values are swept lazily; there is no background goroutine.
type stateStore struct {
	mu     sync.Mutex
	states map[string]issuedState
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[string]issuedState)}
}

// Issue generates a fresh state value for the session/provider pair. The
// encoded form is "provider:nonce" in URL-safe base64.
func (ss *stateStore) Issue(sessionID string, provider models.AuthProvider) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	encodedNonce := base64.RawURLEncoding.EncodeToString(nonce)

	ss.mu.Lock()
	ss.sweepLocked()
	ss.states[encodedNonce] = issuedState{
		sessionID: sessionID,
		provider:  provider,
		createdAt: time.Now(),
	}
	ss.mu.Unlock()

	raw := string(provider) + ":" + encodedNonce
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Consume validates an echoed state value and removes it (single use).
// Returns the provider the state was issued for, or a StateMismatchError.
func (ss *stateStore) Consume(encoded, sessionID string) (models.AuthProvider, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", &models.StateMismatchError{Reason: "state value is not decodable"}
	}

	provider, nonce, found := strings.Cut(string(raw), ":")
	if !found || provider == "" || nonce == "" {
		return "", &models.StateMismatchError{Reason: "state value is malformed"}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	issued, ok := ss.states[nonce]
	if !ok {
		return "", &models.StateMismatchError{Reason: "state value was not issued by this server"}
	}
	delete(ss.states, nonce)

	if time.Since(issued.createdAt) > stateExpiry {
		return "", &models.StateMismatchError{Reason: "state value has expired"}
	}
	if issued.sessionID != sessionID {
		return "", &models.StateMismatchError{Reason: "state value belongs to a different session"}
	}
	if string(issued.provider) != provider {
		return "", &models.StateMismatchError{Reason: "state provider tag does not match issuance"}
	}

	return issued.provider, nil
}

// sweepLocked removes expired states. Caller holds ss.mu.
func (ss *stateStore) sweepLocked() {
	cutoff := time.Now().Add(-stateExpiry)
	for nonce, st := range ss.states {
		if st.createdAt.Before(cutoff) {
			delete(ss.states, nonce)
		}
	}
}
