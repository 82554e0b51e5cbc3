package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI page routes (HTML templates)
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/sprint-status", s.app.DashboardHandler.SprintStatus)
	mux.HandleFunc("/capability", s.app.DashboardHandler.Capability)
	mux.HandleFunc("/refresh", s.app.DashboardHandler.Refresh)

	// Authentication routes
	mux.HandleFunc("/login", s.app.AuthHandler.LoginPage)
	mux.HandleFunc("/login/start", s.app.AuthHandler.StartLogin)
	mux.HandleFunc("/oauth/callback", s.app.AuthHandler.Callback)
	mux.HandleFunc("/logout", s.app.AuthHandler.Logout)

	// API routes - auth state
	mux.HandleFunc("/api/auth/status", s.app.AuthHandler.Status)

	// API routes - dashboard data
	mux.HandleFunc("/api/project", s.app.APIHandler.ProjectHandler)
	mux.HandleFunc("/api/sprint", s.app.APIHandler.SprintHandler)
	mux.HandleFunc("/api/components", s.app.APIHandler.ComponentsHandler)
	mux.HandleFunc("/api/component-counts", s.app.APIHandler.ComponentCountsHandler)
	mux.HandleFunc("/api/component-details", s.app.APIHandler.ComponentDetailsHandler)
	mux.HandleFunc("/api/versions", s.app.APIHandler.ReleasesHandler)
	mux.HandleFunc("/api/capability", s.app.APIHandler.CapabilityHandler)
	mux.HandleFunc("/api/issues/critical", s.app.APIHandler.CriticalIssuesHandler)
	mux.HandleFunc("/api/issues/flagged", s.app.APIHandler.FlaggedHandler)
	mux.HandleFunc("/api/refresh", s.app.APIHandler.RefreshHandler)

	// API routes - service endpoints
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	return mux
}

// handleRoot serves the overview page on "/" and a 404 for every other
// unmatched path (ServeMux sends all unknown paths to the root handler).
// API paths get a JSON 404; everything else gets the HTML error page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			s.app.APIHandler.NotFoundHandler(w, r)
			return
		}
		s.app.DashboardHandler.NotFound(w, r)
		return
	}
	s.app.DashboardHandler.Home(w, r)
}
