package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/interfaces"
	"github.com/wkeng/jiradash/internal/models"
	"github.com/wkeng/jiradash/internal/services/jira"
)

// weekOverWeekDays is the lookback window for capability deltas.
const weekOverWeekDays = 7

// DashboardHandler renders the dashboard pages. A query failure degrades
// to an inline error in the affected section; the rest of the page still
// renders from whatever data loaded.
type DashboardHandler struct {
	config    *common.Config
	sessions  interfaces.SessionStore
	auth      interfaces.AuthService
	dashboard interfaces.DashboardService
	templates *template.Template
	logger    arbor.ILogger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(config *common.Config, sessions interfaces.SessionStore, auth interfaces.AuthService, dashboard interfaces.DashboardService, templates *template.Template, logger arbor.ILogger) *DashboardHandler {
	return &DashboardHandler{
		config:    config,
		sessions:  sessions,
		auth:      auth,
		dashboard: dashboard,
		templates: templates,
		logger:    logger,
	}
}

// requireSession resolves the request's session, redirecting to the login
// page when single sign-on is enabled and the session is not authenticated.
func (h *DashboardHandler) requireSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sess := h.sessions.GetOrCreate(w, r)
	if h.auth.Enabled() && !sess.Authenticated() {
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, false
	}
	return sess, true
}

type basePageData struct {
	Title     string
	User      *models.UserInfo
	Generated string
	Errors    []string
}

func (h *DashboardHandler) base(title string, sess *models.Session) basePageData {
	data := basePageData{
		Title:     title,
		Generated: time.Now().Format("2006-01-02 15:04"),
	}
	if auth := sess.Auth(); auth.Authenticated {
		data.User = auth.User
	}
	return data
}

func (h *DashboardHandler) render(w http.ResponseWriter, name string, data interface{}) {
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type errorPageData struct {
	basePageData
	Message string
}

// errorPage renders the standalone error page. The body is buffered so a
// template failure can still fall back to a plain-text response.
func (h *DashboardHandler) errorPage(w http.ResponseWriter, sess *models.Session, status int, title, message string) {
	data := errorPageData{basePageData: h.base(title, sess), Message: message}
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "error_page", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render error page")
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// NotFound renders the HTML not-found page for unmatched browser paths.
func (h *DashboardHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.GetOrCreate(w, r)
	h.errorPage(w, sess, http.StatusNotFound, "Not Found", "The page "+r.URL.Path+" does not exist.")
}

type homePageData struct {
	basePageData
	Project         *models.Project
	Sprint          *models.Sprint
	ComponentCounts []models.ComponentCount
	Releases        *models.ReleaseVersions
}

// Home renders the project overview page.
func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	data := homePageData{basePageData: h.base("Overview", sess)}

	var err error
	if data.Project, err = h.dashboard.ProjectInfo(ctx, sess); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	}
	if data.Sprint, err = h.dashboard.ActiveSprint(ctx, sess); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	}

	sprintID := 0
	if data.Sprint != nil {
		sprintID = data.Sprint.ID
	}
	if data.ComponentCounts, err = h.dashboard.ComponentIssueCounts(ctx, sess, sprintID); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	}
	if data.Releases, err = h.dashboard.ReleaseVersions(ctx, sess); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	}

	h.render(w, "home", data)
}

// issueRow is an issue decorated with the shaped display fields.
type issueRow struct {
	models.Issue
	TargetDate         string
	FromSprint         bool
	PastDue            bool
	ResolutionApproach string
	FlagComment        string
}

func toIssueRows(issues []models.Issue) []issueRow {
	rows := make([]issueRow, 0, len(issues))
	for _, issue := range issues {
		date, fromSprint := jira.TargetCompletionDate(issue)
		rows = append(rows, issueRow{
			Issue:              issue,
			TargetDate:         date,
			FromSprint:         fromSprint,
			PastDue:            jira.IsDatePast(date),
			ResolutionApproach: jira.ResolutionApproach(issue),
			FlagComment:        jira.FlaggedComment(issue),
		})
	}
	return rows
}

type sprintStatusPageData struct {
	basePageData
	Component     string
	Components    []string
	Sprint        *models.Sprint
	SprintIssues  []issueRow
	BacklogIssues []issueRow
	FlaggedIssues []issueRow
}

// SprintStatus renders the per-component sprint status page.
func (h *DashboardHandler) SprintStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	data := sprintStatusPageData{basePageData: h.base("Sprint Status", sess)}

	var err error
	if data.Components, err = h.dashboard.ProjectComponents(ctx, sess); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
		h.render(w, "sprint_status", data)
		return
	}

	data.Component = r.URL.Query().Get("component")
	if data.Component == "" && len(data.Components) > 0 {
		data.Component = data.Components[0]
	}
	if data.Component == "" {
		h.render(w, "sprint_status", data)
		return
	}

	if data.Sprint, err = h.dashboard.ActiveSprint(ctx, sess); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	}

	sprintID := 0
	if data.Sprint != nil {
		sprintID = data.Sprint.ID
	}

	if sprintID != 0 {
		sprintIssues, err := h.dashboard.CriticalHighIssues(ctx, sess, data.Component, sprintID, true)
		if err != nil {
			data.Errors = append(data.Errors, userMessage(err))
		} else {
			data.SprintIssues = toIssueRows(sprintIssues)
		}
	}

	backlogIssues, err := h.dashboard.CriticalHighIssues(ctx, sess, data.Component, sprintID, false)
	if err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	} else {
		data.BacklogIssues = toIssueRows(backlogIssues)
	}

	flagged, err := h.dashboard.FlaggedIssues(ctx, sess, data.Component)
	if err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	} else {
		data.FlaggedIssues = toIssueRows(flagged)
	}

	h.render(w, "sprint_status", data)
}

// capabilityDeltas are week-over-week changes for the summary columns.
type capabilityDeltas struct {
	DefectsTotal     int
	DefectsAdded     int
	DefectsResolved  int
	FeaturesTotal    int
	FeaturesAdded    int
	FeaturesResolved int
}

type capabilityPageData struct {
	basePageData
	Component  string
	Components []string
	Status     *models.CapabilityStatus
	Deltas     capabilityDeltas
	DaysAgo    int
}

// Capability renders the capability matrix with week-over-week deltas.
func (h *DashboardHandler) Capability(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	data := capabilityPageData{
		basePageData: h.base("Capability", sess),
		DaysAgo:      weekOverWeekDays,
	}

	var err error
	if data.Components, err = h.dashboard.ProjectComponents(ctx, sess); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
		h.render(w, "capability", data)
		return
	}

	data.Component = r.URL.Query().Get("component")
	if data.Component == "" && len(data.Components) > 0 {
		data.Component = data.Components[0]
	}
	if data.Component == "" {
		h.render(w, "capability", data)
		return
	}

	sprint, err := h.dashboard.ActiveSprint(ctx, sess)
	if err != nil {
		data.Errors = append(data.Errors, userMessage(err))
	}
	sprintID := 0
	if sprint != nil {
		sprintID = sprint.ID
	}

	if data.Status, err = h.dashboard.CapabilityStatus(ctx, sess, data.Component, sprintID); err != nil {
		data.Errors = append(data.Errors, userMessage(err))
		h.render(w, "capability", data)
		return
	}

	// History is best-effort; the matrix renders without deltas on failure.
	history, err := h.dashboard.CapabilityHistory(ctx, sess, data.Component, sprintID, weekOverWeekDays)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Capability history unavailable")
	} else if history != nil {
		data.Deltas = capabilityDeltas{
			DefectsTotal:     data.Status.Defects.Total - history.Defects.Total,
			DefectsAdded:     data.Status.Defects.AddedLast30Days - history.Defects.AddedLast30Days,
			DefectsResolved:  data.Status.Defects.ResolvedLast30Days - history.Defects.ResolvedLast30Days,
			FeaturesTotal:    data.Status.Features.Total - history.Features.Total,
			FeaturesAdded:    data.Status.Features.AddedLast30Days - history.Features.AddedLast30Days,
			FeaturesResolved: data.Status.Features.ResolvedLast30Days - history.Features.ResolvedLast30Days,
		}
	}

	h.render(w, "capability", data)
}

// Refresh drops the session's connection handle and all cached data, then
// returns to the page the user came from.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	h.dashboard.Refresh(sess)

	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}
