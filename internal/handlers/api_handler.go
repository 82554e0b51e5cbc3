package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/interfaces"
	"github.com/wkeng/jiradash/internal/models"
)

// APIHandler serves the JSON mirrors of the dashboard data plus health and
// version endpoints.
type APIHandler struct {
	sessions  interfaces.SessionStore
	auth      interfaces.AuthService
	dashboard interfaces.DashboardService
	logger    arbor.ILogger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(sessions interfaces.SessionStore, auth interfaces.AuthService, dashboard interfaces.DashboardService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		sessions:  sessions,
		auth:      auth,
		dashboard: dashboard,
		logger:    logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}

// session resolves the request's session for API calls. When single
// sign-on is enabled an unauthenticated session gets a 401 instead of the
// page redirect.
func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sess := h.sessions.GetOrCreate(w, r)
	if h.auth.Enabled() && !sess.Authenticated() {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return sess, true
}

// ProjectHandler returns project metadata.
func (h *APIHandler) ProjectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	project, err := h.dashboard.ProjectInfo(r.Context(), sess)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, project)
}

// SprintHandler returns the board's active sprint, or null when no sprint
// is active.
func (h *APIHandler) SprintHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sprint, err := h.dashboard.ActiveSprint(r.Context(), sess)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"sprint": sprint})
}

// ComponentsHandler returns the ordered component name list.
func (h *APIHandler) ComponentsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	components, err := h.dashboard.ProjectComponents(r.Context(), sess)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"components": components})
}

// ComponentCountsHandler returns per-component issue counts. An optional
// sprint_id query parameter scopes the counts to a sprint.
func (h *APIHandler) ComponentCountsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sprintID, _ := strconv.Atoi(r.URL.Query().Get("sprint_id"))
	counts, err := h.dashboard.ComponentIssueCounts(r.Context(), sess, sprintID)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

// ReleasesHandler returns the released and upcoming versions.
func (h *APIHandler) ReleasesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	releases, err := h.dashboard.ReleaseVersions(r.Context(), sess)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, releases)
}

// ComponentDetailsHandler returns details for the component named in the
// query string.
func (h *APIHandler) ComponentDetailsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	component := r.URL.Query().Get("component")
	if component == "" {
		WriteError(w, http.StatusBadRequest, "component parameter is required")
		return
	}
	sprintID, _ := strconv.Atoi(r.URL.Query().Get("sprint_id"))

	details, err := h.dashboard.ComponentDetails(r.Context(), sess, component, sprintID)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, details)
}

// CapabilityHandler returns the capability matrix for a component.
func (h *APIHandler) CapabilityHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	component := r.URL.Query().Get("component")
	if component == "" {
		WriteError(w, http.StatusBadRequest, "component parameter is required")
		return
	}
	sprintID, _ := strconv.Atoi(r.URL.Query().Get("sprint_id"))

	status, err := h.dashboard.CapabilityStatus(r.Context(), sess, component, sprintID)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// CriticalIssuesHandler returns unresolved Critical/High issues for a
// component. sprint_only=true scopes the list to the given sprint; otherwise
// the backlog is returned.
func (h *APIHandler) CriticalIssuesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	component := r.URL.Query().Get("component")
	if component == "" {
		WriteError(w, http.StatusBadRequest, "component parameter is required")
		return
	}
	sprintID, _ := strconv.Atoi(r.URL.Query().Get("sprint_id"))
	sprintOnly := r.URL.Query().Get("sprint_only") == "true"

	issues, err := h.dashboard.CriticalHighIssues(r.Context(), sess, component, sprintID, sprintOnly)
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

// FlaggedHandler returns unresolved flagged issues for a component.
func (h *APIHandler) FlaggedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	issues, err := h.dashboard.FlaggedIssues(r.Context(), sess, r.URL.Query().Get("component"))
	if err != nil {
		WriteQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

// RefreshHandler drops cached data and the session's connection handle.
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	h.dashboard.Refresh(sess)
	WriteSuccess(w, "Cache refreshed")
}
