// Package jira provides the REST client, connection provider, cached query
// layer, and data shaping for the dashboard's read-only Jira access.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/wkeng/jiradash/internal/models"
)

// Custom field ids for this Jira instance.
const (
	sprintFieldID             = "customfield_10020"
	resolutionApproachFieldID = "customfield_11249"
)

// searchFields is the field set requested for issue searches.
const searchFields = "summary,status,priority,issuetype,assignee,created,updated,duedate,description,comment," + sprintFieldID + "," + resolutionApproachFieldID

// authMode selects how requests are authenticated.
type authMode int

const (
	authBasic authMode = iota
	authBearer
)

// Client is a read-only Jira REST client. It authenticates with either
// basic auth (email + API token) or an OAuth bearer token, applies a fixed
// request timeout, and throttles request bursts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger

	mode        authMode
	email       string
	apiToken    string
	bearerToken string
}

// NewBasicAuthClient creates a client using email + API token credentials.
func NewBasicAuthClient(baseURL, email, apiToken string, timeout time.Duration, logger arbor.ILogger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		logger:     logger,
		mode:       authBasic,
		email:      email,
		apiToken:   apiToken,
	}
}

// NewBearerClient creates a client using an OAuth access token. For
// Atlassian OAuth the base URL is the api.atlassian.com gateway for the
// session's cloud id.
func NewBearerClient(cloudID, accessToken string, timeout time.Duration, logger arbor.ILogger) *Client {
	return &Client{
		baseURL:     "https://api.atlassian.com/ex/jira/" + cloudID,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(10), 20),
		logger:      logger,
		mode:        authBearer,
		bearerToken: accessToken,
	}
}

// BaseURL returns the client's resolved base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs an authenticated GET against the Jira REST API. Transport
// failures map to ConnectionError, 401/403 to AuthenticationError.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	switch c.mode {
	case authBasic:
		req.SetBasicAuth(c.email, c.apiToken)
	case authBearer:
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Str("url", reqURL).
			Int("status", resp.StatusCode).
			Msg("Jira request failed")

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &models.AuthenticationError{StatusCode: resp.StatusCode, Message: "Jira rejected the credentials"}
		}
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, path, truncate(string(body), 200))
	}

	return body, readErr
}

// Myself returns the authenticated user. Used as the connection validation
// call at construction time.
func (c *Client) Myself(ctx context.Context) (*models.UserInfo, error) {
	data, err := c.get(ctx, "/rest/api/2/myself")
	if err != nil {
		return nil, err
	}

	var raw struct {
		AccountID    string `json:"accountId"`
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
		AvatarURLs   struct {
			Large string `json:"48x48"`
		} `json:"avatarUrls"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}

	return &models.UserInfo{
		AccountID: raw.AccountID,
		Name:      raw.DisplayName,
		Email:     raw.EmailAddress,
		AvatarURL: raw.AvatarURLs.Large,
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
