package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wkeng/jiradash/internal/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "5m", config.Cache.TTL)
	assert.Equal(t, "30s", config.HTTP.RequestTimeout)
	assert.Equal(t, "https://auth.atlassian.com/authorize", config.OAuth.AuthURL)
	assert.False(t, config.OAuth.Enabled)
}

func TestLoadFromFile_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
jira:
  url: https://example.atlassian.net
  project_key: DASH
  board_id: 42
cache:
  ttl: "120"
`)

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "https://example.atlassian.net", config.Jira.URL)
	assert.Equal(t, "DASH", config.Jira.ProjectKey)
	assert.Equal(t, 42, config.Jira.BoardID)
	// Unset keys keep their defaults
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
jira:
  url: https://file.atlassian.net
  project_key: FILE
`)

	t.Setenv("JIRA_URL", "https://env.atlassian.net")
	t.Setenv("JIRA_PROJECT_KEY", "ENV")
	t.Setenv("JIRA_BOARD_ID", "7")

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.atlassian.net", config.Jira.URL)
	assert.Equal(t, "ENV", config.Jira.ProjectKey)
	assert.Equal(t, 7, config.Jira.BoardID)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromFile_EmptyPathUsesEnvOnly(t *testing.T) {
	t.Setenv("JIRA_URL", "https://env-only.atlassian.net")

	config, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "https://env-only.atlassian.net", config.Jira.URL)
}

func TestApplyFlagOverrides_HighestPriority(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  host: filehost
`)

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	ApplyFlagOverrides(config, 7070, "flaghost")
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "flaghost", config.Server.Host)

	// Zero values leave the config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "flaghost", config.Server.Host)
}

func TestValidate_MissingURLNamesEnvVar(t *testing.T) {
	config := NewDefaultConfig()
	config.Jira.ProjectKey = "DASH"
	config.Jira.Email = "svc@example.com"
	config.Jira.APIToken = "token"

	err := config.Validate()
	require.Error(t, err)

	var configErr *models.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "jira.url", configErr.Key)
	assert.Equal(t, "JIRA_URL", configErr.EnvVar)
	assert.Contains(t, err.Error(), "JIRA_URL")
}

func TestValidate_CredentialsRequiredWithoutOAuth(t *testing.T) {
	config := NewDefaultConfig()
	config.Jira.URL = "https://example.atlassian.net"
	config.Jira.ProjectKey = "DASH"

	err := config.Validate()
	require.Error(t, err)

	var configErr *models.ConfigurationError
	require.True(t, errors.As(err, &configErr))
}

func TestValidate_MicrosoftOnlyStillRequiresServiceAccount(t *testing.T) {
	config := NewDefaultConfig()
	config.Jira.URL = "https://example.atlassian.net"
	config.Jira.ProjectKey = "DASH"
	config.Microsoft.Enabled = true
	config.Microsoft.ClientID = "ms-client"
	config.Microsoft.ClientSecret = "ms-secret"
	config.Microsoft.RedirectURI = "https://example.com/oauth/callback"

	err := config.Validate()
	require.Error(t, err)

	var configErr *models.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "jira.email", configErr.Key)
	assert.Equal(t, "JIRA_EMAIL", configErr.EnvVar)

	config.Jira.Email = "svc@example.com"
	config.Jira.APIToken = "token"
	assert.NoError(t, config.Validate())
}

func TestValidate_OAuthRequiresClientFields(t *testing.T) {
	config := NewDefaultConfig()
	config.Jira.URL = "https://example.atlassian.net"
	config.Jira.ProjectKey = "DASH"
	config.OAuth.Enabled = true

	err := config.Validate()
	require.Error(t, err)

	var configErr *models.ConfigurationError
	require.True(t, errors.As(err, &configErr))
}

func TestValidate_ValidServiceAccountConfig(t *testing.T) {
	config := NewDefaultConfig()
	config.Jira.URL = "https://example.atlassian.net"
	config.Jira.ProjectKey = "DASH"
	config.Jira.Email = "svc@example.com"
	config.Jira.APIToken = "token"

	assert.NoError(t, config.Validate())
}

func TestCacheTTL_ParsesDurationsAndSeconds(t *testing.T) {
	tests := []struct {
		name     string
		ttl      string
		expected time.Duration
	}{
		{"go duration", "5m", 5 * time.Minute},
		{"bare seconds", "300", 300 * time.Second},
		{"empty uses default", "", 5 * time.Minute},
		{"garbage uses default", "not-a-duration", 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			config.Cache.TTL = tt.ttl
			assert.Equal(t, tt.expected, config.CacheTTL())
		})
	}
}

func TestRequestTimeout_ParsesDurationsAndSeconds(t *testing.T) {
	config := NewDefaultConfig()
	config.HTTP.RequestTimeout = "45"
	assert.Equal(t, 45*time.Second, config.RequestTimeout())

	config.HTTP.RequestTimeout = "1m"
	assert.Equal(t, time.Minute, config.RequestTimeout())
}

func TestNormalize_TrimsTrailingSlashAndDerivesInstance(t *testing.T) {
	path := writeConfigFile(t, `
jira:
  url: https://example.atlassian.net/
  project_key: DASH
`)

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net", config.Jira.URL)
	assert.Equal(t, "example.atlassian.net", config.Jira.AllowedInstance)
}
