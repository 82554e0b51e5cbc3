package handlers

import (
	"html/template"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/interfaces"
	"github.com/wkeng/jiradash/internal/models"
)

// AuthHandler serves the login page and the OAuth2 redirect endpoints.
type AuthHandler struct {
	sessions  interfaces.SessionStore
	auth      interfaces.AuthService
	templates *template.Template
	logger    arbor.ILogger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions interfaces.SessionStore, auth interfaces.AuthService, templates *template.Template, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		auth:      auth,
		templates: templates,
		logger:    logger,
	}
}

type loginPageData struct {
	Title            string
	User             *models.UserInfo
	Generated        string
	JiraEnabled      bool
	MicrosoftEnabled bool
	Error            string
}

// LoginPage renders the sign-in page. An already authenticated session is
// sent straight to the dashboard.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess := h.sessions.GetOrCreate(w, r)
	if sess.Authenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	auth := sess.Auth()
	data := loginPageData{
		Title:            "Sign in",
		JiraEnabled:      h.auth.ProviderEnabled(models.ProviderJira),
		MicrosoftEnabled: h.auth.ProviderEnabled(models.ProviderMicrosoft),
	}
	if auth.State == models.StateFailed && auth.LastError != "" {
		data.Error = auth.LastError
	}

	if err := h.templates.ExecuteTemplate(w, "login", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render login page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StartLogin issues an anti-forgery state value and redirects the browser
// to the provider's authorization URL.
func (h *AuthHandler) StartLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	provider := models.AuthProvider(r.URL.Query().Get("provider"))
	if provider == "" {
		provider = models.ProviderJira
	}

	sess := h.sessions.GetOrCreate(w, r)
	authURL, err := h.auth.LoginURL(sess, provider)
	if err != nil {
		h.logger.Warn().Err(err).Str("provider", string(provider)).Msg("Login start rejected")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the identity provider redirect. Every failure path lands
// back on the login page with the failure recorded on the session; the
// authorization code is never retried.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := h.sessions.Get(r)
	if !ok {
		h.logger.Warn().Msg("OAuth callback without a session")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		h.logger.Warn().
			Str("error", errCode).
			Str("description", query.Get("error_description")).
			Msg("Provider denied authorization")
		sess.UpdateAuth(func(a *models.SessionAuth) {
			a.Fail(nil)
			a.LastError = "Authorization was denied by the identity provider."
		})
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if err := h.auth.HandleCallback(r.Context(), sess, state, code); err != nil {
		h.logger.Warn().Err(err).Msg("OAuth callback failed")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears the session's auth state and destroys the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.sessions.Get(r); ok {
		h.auth.Logout(sess)
		h.sessions.Destroy(w, sess)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Status returns the session's auth record as JSON. Tokens never appear in
// the payload.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess := h.sessions.GetOrCreate(w, r)
	auth := sess.Auth()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state":         auth.State,
		"authenticated": auth.Authenticated,
		"provider":      auth.Provider,
		"user":          auth.User,
		"last_error":    auth.LastError,
		"sso_enabled":   h.auth.Enabled(),
	})
}
