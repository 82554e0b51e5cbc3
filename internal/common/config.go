package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wkeng/jiradash/internal/models"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Jira      JiraConfig      `yaml:"jira"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Microsoft MicrosoftConfig `yaml:"microsoft"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// JiraConfig holds the Jira Cloud instance settings. URL and ProjectKey are
// required at startup; BoardID is checked at query time.
type JiraConfig struct {
	URL             string           `yaml:"url" validate:"required"`
	Email           string           `yaml:"email"`
	APIToken        string           `yaml:"api_token"`
	ProjectKey      string           `yaml:"project_key" validate:"required"`
	BoardID         int              `yaml:"board_id"`
	AllowedInstance string           `yaml:"allowed_instance"`
	Components      ComponentsConfig `yaml:"components"`
}

type ComponentsConfig struct {
	PreferredOrder []string `yaml:"preferred_order"`
}

// OAuthConfig holds the Atlassian OAuth 2.0 (3LO) provider settings.
type OAuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	Scope        string `yaml:"scope"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	ResourceURL  string `yaml:"resource_url"` // profile endpoint
}

// MicrosoftConfig holds the parallel Microsoft identity provider settings.
type MicrosoftConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	RedirectURI   string `yaml:"redirect_uri"`
	Scope         string `yaml:"scope"`
	Tenant        string `yaml:"tenant"`
	AllowedDomain string `yaml:"allowed_domain"`
	AuthURL       string `yaml:"auth_url"`
	TokenURL      string `yaml:"token_url"`
	ResourceURL   string `yaml:"resource_url"`
}

// CacheConfig controls the query cache. TTL accepts a Go duration ("5m") or
// a bare integer number of seconds ("300").
type CacheConfig struct {
	TTL string `yaml:"ttl"`
}

// HTTPConfig controls outbound request behavior. RequestTimeout accepts a
// Go duration or a bare integer number of seconds.
type HTTPConfig struct {
	RequestTimeout string `yaml:"request_timeout"`
}

type LoggingConfig struct {
	Level      string   `yaml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `yaml:"output"`      // "stdout", "file"
	TimeFormat string   `yaml:"time_format"` // time format for logs
}

// NewDefaultConfig returns the built-in defaults
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		OAuth: OAuthConfig{
			Scope:       "read:jira-work read:jira-user read:me offline_access",
			AuthURL:     "https://auth.atlassian.com/authorize",
			TokenURL:    "https://auth.atlassian.com/oauth/token",
			ResourceURL: "https://api.atlassian.com/me",
		},
		Microsoft: MicrosoftConfig{
			Scope:       "openid profile email User.Read",
			Tenant:      "common",
			ResourceURL: "https://graph.microsoft.com/v1.0/me",
		},
		Cache: CacheConfig{
			TTL: "5m",
		},
		HTTP: HTTPConfig{
			RequestTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// An empty path skips the file layer (env-only configuration is valid).
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalize(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Server configuration
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Jira configuration
	if url := os.Getenv("JIRA_URL"); url != "" {
		config.Jira.URL = strings.TrimSpace(url)
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		config.Jira.Email = strings.TrimSpace(email)
	}
	if token := os.Getenv("JIRA_TOKEN"); token != "" {
		config.Jira.APIToken = strings.TrimSpace(token)
	}
	if key := os.Getenv("JIRA_PROJECT_KEY"); key != "" {
		config.Jira.ProjectKey = strings.TrimSpace(key)
	}
	if boardID := os.Getenv("JIRA_BOARD_ID"); boardID != "" {
		if id, err := strconv.Atoi(strings.TrimSpace(boardID)); err == nil {
			config.Jira.BoardID = id
		}
	}
	if instance := os.Getenv("JIRA_ALLOWED_INSTANCE"); instance != "" {
		config.Jira.AllowedInstance = strings.TrimSpace(instance)
	}

	// OAuth configuration
	if enabled := os.Getenv("OAUTH_ENABLED"); enabled != "" {
		config.OAuth.Enabled = parseBool(enabled)
	}
	if clientID := os.Getenv("OAUTH_CLIENT_ID"); clientID != "" {
		config.OAuth.ClientID = clientID
	}
	if secret := os.Getenv("OAUTH_CLIENT_SECRET"); secret != "" {
		config.OAuth.ClientSecret = secret
	}
	if redirect := os.Getenv("OAUTH_REDIRECT_URI"); redirect != "" {
		config.OAuth.RedirectURI = redirect
	}
	if scope := os.Getenv("OAUTH_SCOPE"); scope != "" {
		config.OAuth.Scope = scope
	}

	// Microsoft OAuth configuration
	if enabled := os.Getenv("MS_OAUTH_ENABLED"); enabled != "" {
		config.Microsoft.Enabled = parseBool(enabled)
	}
	if clientID := os.Getenv("MS_OAUTH_CLIENT_ID"); clientID != "" {
		config.Microsoft.ClientID = clientID
	}
	if secret := os.Getenv("MS_OAUTH_CLIENT_SECRET"); secret != "" {
		config.Microsoft.ClientSecret = secret
	}
	if redirect := os.Getenv("MS_OAUTH_REDIRECT_URI"); redirect != "" {
		config.Microsoft.RedirectURI = redirect
	}
	if tenant := os.Getenv("MS_OAUTH_TENANT"); tenant != "" {
		config.Microsoft.Tenant = tenant
	}
	if domain := os.Getenv("MS_OAUTH_ALLOWED_DOMAIN"); domain != "" {
		config.Microsoft.AllowedDomain = domain
	}

	// Cache and HTTP configuration
	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		config.Cache.TTL = ttl
	}
	if timeout := os.Getenv("REQUEST_TIMEOUT"); timeout != "" {
		config.HTTP.RequestTimeout = timeout
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// normalize cleans up resolved values (trailing slashes, whitespace)
func normalize(config *Config) {
	config.Jira.URL = strings.TrimRight(strings.TrimSpace(config.Jira.URL), "/")
	config.Jira.ProjectKey = strings.TrimSpace(config.Jira.ProjectKey)
	config.Jira.AllowedInstance = strings.TrimSpace(config.Jira.AllowedInstance)

	// Microsoft tenant endpoints are derived unless explicitly configured
	if config.Microsoft.AuthURL == "" {
		config.Microsoft.AuthURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", config.Microsoft.Tenant)
	}
	if config.Microsoft.TokenURL == "" {
		config.Microsoft.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", config.Microsoft.Tenant)
	}

	// Default the allow-list to the configured instance host
	if config.Jira.AllowedInstance == "" && config.Jira.URL != "" {
		config.Jira.AllowedInstance = strings.TrimPrefix(strings.TrimPrefix(config.Jira.URL, "https://"), "http://")
	}
}

// envVarFor maps a config key to its environment variable name.
var envVarFor = map[string]string{
	"jira.url":            "JIRA_URL",
	"jira.email":          "JIRA_EMAIL",
	"jira.api_token":      "JIRA_TOKEN",
	"jira.project_key":    "JIRA_PROJECT_KEY",
	"jira.board_id":       "JIRA_BOARD_ID",
	"oauth.client_id":     "OAUTH_CLIENT_ID",
	"oauth.client_secret": "OAUTH_CLIENT_SECRET",
	"oauth.redirect_uri":  "OAUTH_REDIRECT_URI",
}

// Validate checks required fields and returns a ConfigurationError naming
// the missing variable/key. Halts startup when it fails.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c.Jira); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			key := "jira." + toSnake(verrs[0].Field())
			return models.NewConfigurationError(key, envVarFor[key], "required configuration value is missing")
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.OAuth.Enabled {
		if c.OAuth.ClientID == "" {
			return models.NewConfigurationError("oauth.client_id", "OAUTH_CLIENT_ID", "OAuth is enabled but the client id is missing")
		}
		if c.OAuth.ClientSecret == "" {
			return models.NewConfigurationError("oauth.client_secret", "OAUTH_CLIENT_SECRET", "OAuth is enabled but the client secret is missing")
		}
		if c.OAuth.RedirectURI == "" {
			return models.NewConfigurationError("oauth.redirect_uri", "OAUTH_REDIRECT_URI", "OAuth is enabled but the redirect URI is missing")
		}
	} else {
		// Without the Jira OAuth provider every Jira call runs on the
		// service account, Microsoft sign-in included.
		if c.Jira.Email == "" {
			return models.NewConfigurationError("jira.email", "JIRA_EMAIL", "the Jira OAuth provider is disabled and the Jira email is missing")
		}
		if c.Jira.APIToken == "" {
			return models.NewConfigurationError("jira.api_token", "JIRA_TOKEN", "the Jira OAuth provider is disabled and the Jira API token is missing")
		}
	}

	return nil
}

// CacheTTL returns the parsed cache TTL, defaulting to 5 minutes.
func (c *Config) CacheTTL() time.Duration {
	return parseDurationOrSeconds(c.Cache.TTL, 5*time.Minute)
}

// RequestTimeout returns the parsed outbound request timeout, defaulting to
// 30 seconds.
func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOrSeconds(c.HTTP.RequestTimeout, 30*time.Second)
}

// parseDurationOrSeconds parses "5m" style durations, falling back to a bare
// integer number of seconds ("300"), then to def.
func parseDurationOrSeconds(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// toSnake converts a Go field name to its yaml key form (APIToken -> api_token).
func toSnake(field string) string {
	switch field {
	case "URL":
		return "url"
	case "APIToken":
		return "api_token"
	case "ProjectKey":
		return "project_key"
	case "BoardID":
		return "board_id"
	case "ClientID":
		return "client_id"
	case "ClientSecret":
		return "client_secret"
	case "RedirectURI":
		return "redirect_uri"
	}
	var out []rune
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
