// Package auth implements the three-legged OAuth2 authorization-code flow
// against the Atlassian and Microsoft identity providers, including the
// allow-list instance check that gates dashboard access.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/models"
)

// accessibleResourcesURL lists the Jira sites an Atlassian token can reach.
const accessibleResourcesURL = "https://api.atlassian.com/oauth/token/accessible-resources"

// Service runs the per-session OAuth2 state machine. Token exchange and
// profile fetches are synchronous with a fixed timeout. Nothing is retried
// automatically: a failed exchange is an operator configuration problem
// (redirect URI mismatch, stale client credentials), not a transient fault.
type Service struct {
	config *common.Config
	states *stateStore
	logger arbor.ILogger

	httpClient *http.Client

	// resourcesURL is overridable in tests.
	resourcesURL string
}

// NewService creates the authenticator from resolved configuration.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		states: newStateStore(),
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout(),
		},
		resourcesURL: accessibleResourcesURL,
	}
}

// Enabled reports whether at least one OAuth provider is configured.
func (s *Service) Enabled() bool {
	return s.config.OAuth.Enabled || s.config.Microsoft.Enabled
}

// ProviderEnabled reports whether the given provider is configured.
func (s *Service) ProviderEnabled(provider models.AuthProvider) bool {
	switch provider {
	case models.ProviderJira:
		return s.config.OAuth.Enabled
	case models.ProviderMicrosoft:
		return s.config.Microsoft.Enabled
	}
	return false
}

// oauthConfig builds the oauth2 configuration for one provider.
func (s *Service) oauthConfig(provider models.AuthProvider) (*oauth2.Config, error) {
	switch provider {
	case models.ProviderJira:
		c := s.config.OAuth
		return &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       strings.Fields(c.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.AuthURL,
				TokenURL: c.TokenURL,
			},
		}, nil
	case models.ProviderMicrosoft:
		c := s.config.Microsoft
		return &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       strings.Fields(c.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.AuthURL,
				TokenURL: c.TokenURL,
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown auth provider %q", provider)
}

// LoginURL issues a fresh state value and returns the authorization URL.
// Moves the session to AWAITING_CALLBACK.
func (s *Service) LoginURL(sess *models.Session, provider models.AuthProvider) (string, error) {
	if !s.ProviderEnabled(provider) {
		return "", fmt.Errorf("auth provider %q is not enabled", provider)
	}

	conf, err := s.oauthConfig(provider)
	if err != nil {
		return "", err
	}

	state, err := s.states.Issue(sess.ID, provider)
	if err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if provider == models.ProviderJira {
		// Atlassian 3LO requires the audience parameter and an explicit
		// consent prompt.
		opts = append(opts,
			oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
			oauth2.SetAuthURLParam("prompt", "consent"),
		)
	}

	sess.UpdateAuth(func(a *models.SessionAuth) {
		a.Clear()
		a.State = models.StateAwaitingCallback
	})

	authURL := conf.AuthCodeURL(state, opts...)
	s.logger.Info().
		Str("provider", string(provider)).
		Str("session", sess.ID).
		Msg("Issued authorization redirect")
	return authURL, nil
}

// HandleCallback processes the identity provider redirect for one session.
func (s *Service) HandleCallback(ctx context.Context, sess *models.Session, state, code string) error {
	provider, err := s.states.Consume(state, sess.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID).Msg("OAuth state validation failed")
		sess.UpdateAuth(func(a *models.SessionAuth) { a.Fail(err) })
		return err
	}

	conf, err := s.oauthConfig(provider)
	if err != nil {
		sess.UpdateAuth(func(a *models.SessionAuth) { a.Fail(err) })
		return err
	}

	sess.UpdateAuth(func(a *models.SessionAuth) { a.State = models.StateTokenExchange })

	// The oauth2 package picks the exchange client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		exchangeErr := &models.TokenExchangeError{Provider: string(provider), Err: err}
		s.logger.Error().Err(err).
			Str("provider", string(provider)).
			Msg("Authorization code exchange failed - check redirect URI and client credentials")
		sess.UpdateAuth(func(a *models.SessionAuth) { a.Fail(exchangeErr) })
		return exchangeErr
	}

	sess.UpdateAuth(func(a *models.SessionAuth) { a.State = models.StateValidatingInstance })

	user, cloudID, err := s.validateIdentity(ctx, provider, token.AccessToken)
	if err != nil {
		// Resetting the session here discards the token; it never leaves
		// session scope.
		sess.UpdateAuth(func(a *models.SessionAuth) { a.Fail(err) })
		return err
	}

	sess.UpdateAuth(func(a *models.SessionAuth) {
		a.State = models.StateAuthenticated
		a.Authenticated = true
		a.Provider = provider
		a.AccessToken = token.AccessToken
		a.RefreshToken = token.RefreshToken
		a.TokenExpiry = token.Expiry
		a.CloudID = cloudID
		a.User = user
		a.LastError = ""
	})

	s.logger.Info().
		Str("provider", string(provider)).
		Str("email", user.Email).
		Msg("Session authenticated")
	return nil
}

// Logout clears all session auth state.
func (s *Service) Logout(sess *models.Session) {
	sess.UpdateAuth(func(a *models.SessionAuth) { a.Clear() })
	s.logger.Info().Str("session", sess.ID).Msg("Session logged out")
}

// validateIdentity fetches the user profile and confirms the account belongs
// to the allowed instance. Returns the profile and, for the Jira provider,
// the cloud id of the allowed site.
func (s *Service) validateIdentity(ctx context.Context, provider models.AuthProvider, accessToken string) (*models.UserInfo, string, error) {
	switch provider {
	case models.ProviderJira:
		return s.validateAtlassian(ctx, accessToken)
	case models.ProviderMicrosoft:
		user, err := s.validateMicrosoft(ctx, accessToken)
		return user, "", err
	}
	return nil, "", fmt.Errorf("unknown auth provider %q", provider)
}

func (s *Service) validateAtlassian(ctx context.Context, accessToken string) (*models.UserInfo, string, error) {
	var profile struct {
		AccountID string `json:"account_id"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		Picture   string `json:"picture"`
	}
	if err := s.getJSON(ctx, s.config.OAuth.ResourceURL, accessToken, &profile); err != nil {
		return nil, "", &models.AuthenticationError{Message: "failed to fetch user profile: " + err.Error()}
	}

	var sites []struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	if err := s.getJSON(ctx, s.resourcesURL, accessToken, &sites); err != nil {
		return nil, "", &models.AuthenticationError{Message: "failed to list accessible resources: " + err.Error()}
	}

	allowed := s.config.Jira.AllowedInstance
	for _, site := range sites {
		host := site.URL
		if u, err := url.Parse(site.URL); err == nil && u.Host != "" {
			host = u.Host
		}
		if allowed == "" || strings.EqualFold(host, allowed) {
			user := &models.UserInfo{
				AccountID: profile.AccountID,
				Name:      profile.Name,
				Email:     profile.Email,
				AvatarURL: profile.Picture,
			}
			return user, site.ID, nil
		}
	}

	return nil, "", &models.UnauthorizedInstanceError{Email: profile.Email, Instance: allowed}
}

func (s *Service) validateMicrosoft(ctx context.Context, accessToken string) (*models.UserInfo, error) {
	var profile struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := s.getJSON(ctx, s.config.Microsoft.ResourceURL, accessToken, &profile); err != nil {
		return nil, &models.AuthenticationError{Message: "failed to fetch user profile: " + err.Error()}
	}

	email := profile.Mail
	if email == "" {
		email = profile.UserPrincipalName
	}

	if allowed := s.config.Microsoft.AllowedDomain; allowed != "" {
		_, domain, found := strings.Cut(email, "@")
		if !found || !strings.EqualFold(domain, allowed) {
			return nil, &models.UnauthorizedInstanceError{Email: email, Instance: allowed}
		}
	}

	return &models.UserInfo{
		AccountID: profile.ID,
		Name:      profile.DisplayName,
		Email:     email,
	}, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (s *Service) getJSON(ctx context.Context, rawURL, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, rawURL, truncate(string(body), 200))
	}

	return json.Unmarshal(body, out)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
