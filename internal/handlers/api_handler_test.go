package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/models"
)

func newAPIHandler(sessions *mockSessionStore, auth *mockAuthService, dashboard *mockDashboardService) *APIHandler {
	return NewAPIHandler(sessions, auth, dashboard, testLogger())
}

func TestAPIUnauthenticatedGets401WhenSSOEnabled(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	handler := newAPIHandler(sessions, &mockAuthService{enabled: true}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.ProjectHandler(rec, httptest.NewRequest("GET", "/api/project", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication required")
}

func TestProjectHandler(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	handler := newAPIHandler(sessions, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.ProjectHandler(rec, httptest.NewRequest("GET", "/api/project", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	assert.Equal(t, "DASH", project.Key)
}

func TestSprintHandler_NullWhenNoActiveSprint(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	handler := newAPIHandler(sessions, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.SprintHandler(rec, httptest.NewRequest("GET", "/api/sprint", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sprint":null`)
}

func TestComponentCountsHandler_ParsesSprintID(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	var gotSprintID int
	dashboard := &mockDashboardService{
		componentCountsFunc: func(sprintID int) ([]models.ComponentCount, error) {
			gotSprintID = sprintID
			return []models.ComponentCount{{Component: "Billing", Total: 5}}, nil
		},
	}
	handler := newAPIHandler(sessions, &mockAuthService{}, dashboard)

	rec := httptest.NewRecorder()
	handler.ComponentCountsHandler(rec, httptest.NewRequest("GET", "/api/component-counts?sprint_id=12", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, gotSprintID)
	assert.Contains(t, rec.Body.String(), "Billing")
}

func TestComponentDetailsHandler_RequiresComponent(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	handler := newAPIHandler(sessions, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.ComponentDetailsHandler(rec, httptest.NewRequest("GET", "/api/component-details", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "component parameter is required")
}

func TestCapabilityHandler_QueryErrorStatusMapping(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "auth error",
			err:    &models.QueryError{Operation: "capability_status", Err: &models.AuthenticationError{StatusCode: 401, Message: "expired"}},
			status: http.StatusUnauthorized,
		},
		{
			name:   "configuration error",
			err:    &models.QueryError{Operation: "capability_status", Err: &models.ConfigurationError{Key: "jira.board_id", EnvVar: "JIRA_BOARD_ID"}},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "connection error",
			err:    &models.QueryError{Operation: "capability_status", Err: &models.ConnectionError{URL: "https://example.atlassian.net", Err: assert.AnError}},
			status: http.StatusBadGateway,
		},
		{
			name:   "other error",
			err:    &models.QueryError{Operation: "capability_status", Err: assert.AnError},
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dashboard := &mockDashboardService{
				capabilityFunc: func(component string, sprintID int) (*models.CapabilityStatus, error) {
					return nil, tt.err
				},
			}
			handler := newAPIHandler(sessions, &mockAuthService{}, dashboard)

			rec := httptest.NewRecorder()
			handler.CapabilityHandler(rec, httptest.NewRequest("GET", "/api/capability?component=Billing", nil))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestFlaggedHandler(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	dashboard := &mockDashboardService{
		flaggedFunc: func(component string) ([]models.Issue, error) {
			assert.Equal(t, "API", component)
			return []models.Issue{{Key: "DASH-9", Summary: "Blocked on vendor"}}, nil
		},
	}
	handler := newAPIHandler(sessions, &mockAuthService{}, dashboard)

	rec := httptest.NewRecorder()
	handler.FlaggedHandler(rec, httptest.NewRequest("GET", "/api/issues/flagged?component=API", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DASH-9")
}

func TestCriticalIssuesHandler_ParsesScope(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	var gotSprintOnly bool
	dashboard := &mockDashboardService{
		criticalHighFunc: func(component string, sprintID int, sprintOnly bool) ([]models.Issue, error) {
			assert.Equal(t, "Billing", component)
			assert.Equal(t, 12, sprintID)
			gotSprintOnly = sprintOnly
			return []models.Issue{{Key: "DASH-4", Priority: "Highest"}}, nil
		},
	}
	handler := newAPIHandler(sessions, &mockAuthService{}, dashboard)

	rec := httptest.NewRecorder()
	handler.CriticalIssuesHandler(rec, httptest.NewRequest("GET", "/api/issues/critical?component=Billing&sprint_id=12&sprint_only=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotSprintOnly)
	assert.Contains(t, rec.Body.String(), "DASH-4")
}

func TestCriticalIssuesHandler_RequiresComponent(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	handler := newAPIHandler(sessions, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.CriticalIssuesHandler(rec, httptest.NewRequest("GET", "/api/issues/critical", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshHandler_RequiresPost(t *testing.T) {
	sessions := &mockSessionStore{session: models.NewSession("s1")}
	dashboard := &mockDashboardService{}
	handler := newAPIHandler(sessions, &mockAuthService{}, dashboard)

	rec := httptest.NewRecorder()
	handler.RefreshHandler(rec, httptest.NewRequest("GET", "/api/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, dashboard.refreshed)

	rec = httptest.NewRecorder()
	handler.RefreshHandler(rec, httptest.NewRequest("POST", "/api/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, dashboard.refreshed)
}

func TestHealthHandler(t *testing.T) {
	handler := newAPIHandler(&mockSessionStore{}, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, httptest.NewRequest("GET", "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestVersionHandler(t *testing.T) {
	handler := newAPIHandler(&mockSessionStore{}, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.VersionHandler(rec, httptest.NewRequest("GET", "/api/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"version":`+strconv.Quote(common.GetVersion()))
	assert.Contains(t, body, `"build":`)
	assert.Contains(t, body, `"git_commit":`)
}

func TestNotFoundHandler(t *testing.T) {
	handler := newAPIHandler(&mockSessionStore{}, &mockAuthService{}, &mockDashboardService{})

	rec := httptest.NewRecorder()
	handler.NotFoundHandler(rec, httptest.NewRequest("GET", "/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/nope")
}
