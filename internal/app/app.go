package app

import (
	"html/template"

	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/handlers"
	"github.com/wkeng/jiradash/internal/interfaces"
	"github.com/wkeng/jiradash/internal/services/auth"
	"github.com/wkeng/jiradash/internal/services/cache"
	"github.com/wkeng/jiradash/internal/services/jira"
	"github.com/wkeng/jiradash/internal/services/session"
	"github.com/wkeng/jiradash/pages"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Core services
	SessionStore     interfaces.SessionStore
	AuthService      interfaces.AuthService
	DashboardService interfaces.DashboardService
	Provider         *jira.Provider
	Cache            *cache.Cache

	// HTTP handlers
	AuthHandler      *handlers.AuthHandler
	DashboardHandler *handlers.DashboardHandler
	APIHandler       *handlers.APIHandler
}

// New creates the application and wires every component together. Services
// are constructed bottom-up: session store and cache first, then the auth
// and dashboard services, then the handlers on top.
func New(config *common.Config) (*App, error) {
	logger := common.GetLogger()

	a := &App{
		Config: config,
		Logger: logger,
	}

	// Core services
	a.SessionStore = session.NewStore(session.DefaultIdleExpiry, false, logger)
	a.Cache = cache.New(config.CacheTTL())
	a.AuthService = auth.NewService(config, logger)
	a.Provider = jira.NewProvider(config, logger)
	a.DashboardService = jira.NewService(config, a.Provider, a.Cache, logger)

	// Page templates
	templates, err := pages.Templates(templateFuncs())
	if err != nil {
		return nil, err
	}

	// HTTP handlers
	a.AuthHandler = handlers.NewAuthHandler(a.SessionStore, a.AuthService, templates, logger)
	a.DashboardHandler = handlers.NewDashboardHandler(config, a.SessionStore, a.AuthService, a.DashboardService, templates, logger)
	a.APIHandler = handlers.NewAPIHandler(a.SessionStore, a.AuthService, a.DashboardService, logger)

	logger.Info().
		Str("project", config.Jira.ProjectKey).
		Str("url", config.Jira.URL).
		Bool("sso", a.AuthService.Enabled()).
		Msg("Application initialized")

	return a, nil
}

// templateFuncs are the helpers available inside page templates.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"isPast": jira.IsDatePast,
		"orDefault": func(s, def string) string {
			if s == "" {
				return def
			}
			return s
		},
	}
}
