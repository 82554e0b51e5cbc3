package jira

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/models"
)

// Provider hands out validated Jira connection handles. Handles are cached
// per session and keyed by a credentials fingerprint, so a session whose
// credentials change (login, logout, token refresh) gets a fresh handle on
// the next call while an unchanged session reuses the validated one.
type Provider struct {
	config *common.Config
	logger arbor.ILogger

	mu      sync.Mutex
	handles map[string]*handle
}

type handle struct {
	fingerprint string
	client      *Client
	user        *models.UserInfo
}

// NewProvider creates a connection provider for the given configuration.
func NewProvider(config *common.Config, logger arbor.ILogger) *Provider {
	return &Provider{
		config:  config,
		logger:  logger,
		handles: make(map[string]*handle),
	}
}

// ClientFor resolves a connection handle for the session. Sessions
// authenticated with the Jira provider get a bearer client against the
// api.atlassian.com gateway for their cloud id; everything else falls back
// to the configured service account. The handle is validated with a profile
// request before it is cached; a failed validation is never cached.
func (p *Provider) ClientFor(ctx context.Context, sess *models.Session) (*Client, error) {
	auth := sess.Auth()

	fingerprint, build, err := p.resolve(auth)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if h, ok := p.handles[sess.ID]; ok && h.fingerprint == fingerprint {
		client := h.client
		p.mu.Unlock()
		return client, nil
	}
	p.mu.Unlock()

	client := build()
	user, err := client.Myself(ctx)
	if err != nil {
		p.logger.Warn().
			Str("session", sess.ID).
			Err(err).
			Msg("Jira connection validation failed")
		return nil, err
	}

	p.logger.Info().
		Str("session", sess.ID).
		Str("user", user.Name).
		Str("base_url", client.BaseURL()).
		Msg("Jira connection validated")

	p.mu.Lock()
	p.handles[sess.ID] = &handle{fingerprint: fingerprint, client: client, user: user}
	p.mu.Unlock()

	return client, nil
}

// Invalidate drops the session's cached handle. The next ClientFor call
// re-validates credentials from scratch.
func (p *Provider) Invalidate(sessionID string) {
	p.mu.Lock()
	delete(p.handles, sessionID)
	p.mu.Unlock()
}

// resolve picks the credential source for the session and returns its
// fingerprint plus a constructor for the matching client.
func (p *Provider) resolve(auth models.SessionAuth) (string, func() *Client, error) {
	timeout := p.config.RequestTimeout()

	if auth.Authenticated && auth.Provider == models.ProviderJira && auth.CloudID != "" {
		fp := fingerprint("bearer", auth.CloudID, auth.AccessToken)
		cloudID, token := auth.CloudID, auth.AccessToken
		return fp, func() *Client {
			return NewBearerClient(cloudID, token, timeout, p.logger)
		}, nil
	}

	jira := p.config.Jira
	if jira.Email == "" || jira.APIToken == "" {
		return "", nil, &models.ConfigurationError{
			Key:     "jira.api_token",
			EnvVar:  "JIRA_TOKEN",
			Message: "no service account credentials configured and session is not authenticated with Jira",
		}
	}

	fp := fingerprint("basic", jira.URL, jira.Email, jira.APIToken)
	return fp, func() *Client {
		return NewBasicAuthClient(jira.URL, jira.Email, jira.APIToken, timeout, p.logger)
	}, nil
}

// fingerprint hashes credential material so handles can be compared without
// holding raw secrets in the cache key.
func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
