package handlers

import (
	"context"
	"html/template"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/models"
	"github.com/wkeng/jiradash/internal/services/jira"
	"github.com/wkeng/jiradash/pages"
)

// mockSessionStore hands every request the same in-memory session.
type mockSessionStore struct {
	session   *models.Session
	destroyed bool
}

func (m *mockSessionStore) GetOrCreate(w http.ResponseWriter, r *http.Request) *models.Session {
	return m.session
}

func (m *mockSessionStore) Get(r *http.Request) (*models.Session, bool) {
	if m.session == nil {
		return nil, false
	}
	return m.session, true
}

func (m *mockSessionStore) Destroy(w http.ResponseWriter, sess *models.Session) {
	m.destroyed = true
}

// mockAuthService is a function-field auth service stub.
type mockAuthService struct {
	enabled      bool
	loginURLFunc func(sess *models.Session, provider models.AuthProvider) (string, error)
	callbackFunc func(ctx context.Context, sess *models.Session, state, code string) error
	loggedOut    bool
}

func (m *mockAuthService) Enabled() bool { return m.enabled }

func (m *mockAuthService) ProviderEnabled(provider models.AuthProvider) bool { return m.enabled }

func (m *mockAuthService) LoginURL(sess *models.Session, provider models.AuthProvider) (string, error) {
	if m.loginURLFunc != nil {
		return m.loginURLFunc(sess, provider)
	}
	return "https://auth.example.com/authorize?state=abc", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, sess *models.Session, state, code string) error {
	if m.callbackFunc != nil {
		return m.callbackFunc(ctx, sess, state, code)
	}
	return nil
}

func (m *mockAuthService) Logout(sess *models.Session) {
	m.loggedOut = true
	sess.UpdateAuth(func(a *models.SessionAuth) { a.Clear() })
}

// mockDashboardService is a function-field dashboard stub. Unset functions
// return empty results.
type mockDashboardService struct {
	projectInfoFunc     func() (*models.Project, error)
	activeSprintFunc    func() (*models.Sprint, error)
	componentCountsFunc func(sprintID int) ([]models.ComponentCount, error)
	componentsFunc      func() ([]string, error)
	releasesFunc        func() (*models.ReleaseVersions, error)
	detailsFunc         func(component string, sprintID int) (*models.ComponentDetails, error)
	capabilityFunc      func(component string, sprintID int) (*models.CapabilityStatus, error)
	historyFunc         func(component string, sprintID, daysAgo int) (*models.CapabilityHistory, error)
	criticalHighFunc    func(component string, sprintID int, sprintOnly bool) ([]models.Issue, error)
	flaggedFunc         func(component string) ([]models.Issue, error)
	refreshed           bool
}

func (m *mockDashboardService) ProjectInfo(ctx context.Context, sess *models.Session) (*models.Project, error) {
	if m.projectInfoFunc != nil {
		return m.projectInfoFunc()
	}
	return &models.Project{Key: "DASH", Name: "Dashboard"}, nil
}

func (m *mockDashboardService) ActiveSprint(ctx context.Context, sess *models.Session) (*models.Sprint, error) {
	if m.activeSprintFunc != nil {
		return m.activeSprintFunc()
	}
	return nil, nil
}

func (m *mockDashboardService) ComponentIssueCounts(ctx context.Context, sess *models.Session, sprintID int) ([]models.ComponentCount, error) {
	if m.componentCountsFunc != nil {
		return m.componentCountsFunc(sprintID)
	}
	return nil, nil
}

func (m *mockDashboardService) ProjectComponents(ctx context.Context, sess *models.Session) ([]string, error) {
	if m.componentsFunc != nil {
		return m.componentsFunc()
	}
	return nil, nil
}

func (m *mockDashboardService) ReleaseVersions(ctx context.Context, sess *models.Session) (*models.ReleaseVersions, error) {
	if m.releasesFunc != nil {
		return m.releasesFunc()
	}
	return &models.ReleaseVersions{}, nil
}

func (m *mockDashboardService) ComponentDetails(ctx context.Context, sess *models.Session, component string, sprintID int) (*models.ComponentDetails, error) {
	if m.detailsFunc != nil {
		return m.detailsFunc(component, sprintID)
	}
	return &models.ComponentDetails{Name: component}, nil
}

func (m *mockDashboardService) CapabilityStatus(ctx context.Context, sess *models.Session, component string, sprintID int) (*models.CapabilityStatus, error) {
	if m.capabilityFunc != nil {
		return m.capabilityFunc(component, sprintID)
	}
	return &models.CapabilityStatus{Component: component}, nil
}

func (m *mockDashboardService) CapabilityHistory(ctx context.Context, sess *models.Session, component string, sprintID, daysAgo int) (*models.CapabilityHistory, error) {
	if m.historyFunc != nil {
		return m.historyFunc(component, sprintID, daysAgo)
	}
	return &models.CapabilityHistory{Component: component, DaysAgo: daysAgo}, nil
}

func (m *mockDashboardService) CriticalHighIssues(ctx context.Context, sess *models.Session, component string, sprintID int, sprintOnly bool) ([]models.Issue, error) {
	if m.criticalHighFunc != nil {
		return m.criticalHighFunc(component, sprintID, sprintOnly)
	}
	return nil, nil
}

func (m *mockDashboardService) FlaggedIssues(ctx context.Context, sess *models.Session, component string) ([]models.Issue, error) {
	if m.flaggedFunc != nil {
		return m.flaggedFunc(component)
	}
	return nil, nil
}

func (m *mockDashboardService) Refresh(sess *models.Session) {
	m.refreshed = true
}

func testTemplates(t *testing.T) *template.Template {
	t.Helper()
	templates, err := pages.Templates(template.FuncMap{
		"isPast": jira.IsDatePast,
		"orDefault": func(s, def string) string {
			if s == "" {
				return def
			}
			return s
		},
	})
	require.NoError(t, err)
	return templates
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func authenticatedSession(id string) *models.Session {
	sess := models.NewSession(id)
	sess.UpdateAuth(func(a *models.SessionAuth) {
		a.State = models.StateAuthenticated
		a.Authenticated = true
		a.Provider = models.ProviderJira
		a.User = &models.UserInfo{AccountID: "acc-1", Name: "Dana Reviewer", Email: "dana@example.com"}
	})
	return sess
}
