package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/models"
	"github.com/wkeng/jiradash/internal/services/cache"
)

// fakeJira is a minimal Jira REST server for service tests. It counts the
// requests it serves so cache behavior is observable.
type fakeJira struct {
	server   *httptest.Server
	requests atomic.Int64
}

func newFakeJira(t *testing.T) *fakeJira {
	t.Helper()
	fj := &fakeJira{}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/myself", func(w http.ResponseWriter, r *http.Request) {
		fj.requests.Add(1)
		json.NewEncoder(w).Encode(map[string]string{
			"accountId":   "svc-account",
			"displayName": "Service Account",
		})
	})
	mux.HandleFunc("/rest/api/2/project/DASH", func(w http.ResponseWriter, r *http.Request) {
		fj.requests.Add(1)
		json.NewEncoder(w).Encode(map[string]string{
			"key":  "DASH",
			"name": "Dashboard",
		})
	})
	mux.HandleFunc("/rest/api/2/project/DASH/components", func(w http.ResponseWriter, r *http.Request) {
		fj.requests.Add(1)
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "100", "name": "Billing"},
			{"id": "101", "name": "API"},
		})
	})
	mux.HandleFunc("/rest/api/2/project/DASH/versions", func(w http.ResponseWriter, r *http.Request) {
		fj.requests.Add(1)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "1", "name": "1.0", "released": true, "releaseDate": "2026-01-01"},
			{"id": "2", "name": "2.0", "released": false, "releaseDate": "2026-10-01"},
		})
	})
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		fj.requests.Add(1)
		jql := r.URL.Query().Get("jql")
		if r.URL.Query().Get("maxResults") == "0" {
			total := 3
			if strings.Contains(jql, "type = Bug") {
				total = 2
			}
			json.NewEncoder(w).Encode(map[string]int{"total": total})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issues": []map[string]interface{}{
				{"key": "DASH-1", "fields": map[string]interface{}{"summary": "One", "status": map[string]string{"name": "Open"}}},
			},
		})
	})
	mux.HandleFunc("/rest/agile/1.0/board/42/sprint", func(w http.ResponseWriter, r *http.Request) {
		fj.requests.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"values": []map[string]interface{}{
				{"id": 12, "name": "Sprint 12", "state": "active", "endDate": "2026-09-05T22:00:00.000Z"},
			},
		})
	})

	fj.server = httptest.NewServer(mux)
	t.Cleanup(fj.server.Close)
	return fj
}

func newTestService(t *testing.T, fj *fakeJira) (*Service, *models.Session) {
	t.Helper()
	config := common.NewDefaultConfig()
	config.Jira.URL = fj.server.URL
	config.Jira.Email = "svc@example.com"
	config.Jira.APIToken = "token"
	config.Jira.ProjectKey = "DASH"
	config.Jira.BoardID = 42

	logger := arbor.NewLogger()
	provider := NewProvider(config, logger)
	svc := NewService(config, provider, cache.New(time.Minute), logger).(*Service)
	return svc, models.NewSession("session-1")
}

func TestProjectInfo_CachedAfterFirstFetch(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)
	ctx := context.Background()

	project, err := svc.ProjectInfo(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Dashboard", project.Name)

	first := fj.requests.Load()

	for i := 0; i < 3; i++ {
		_, err := svc.ProjectInfo(ctx, sess)
		require.NoError(t, err)
	}

	assert.Equal(t, first, fj.requests.Load())
}

func TestActiveSprint(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)

	sprint, err := svc.ActiveSprint(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, sprint)
	assert.Equal(t, 12, sprint.ID)
	assert.Equal(t, "2026-09-05", sprint.EndDate)
}

func TestActiveSprint_MissingBoardID(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)
	svc.config.Jira.BoardID = 0

	_, err := svc.ActiveSprint(context.Background(), sess)
	require.Error(t, err)

	var configErr *models.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "jira.board_id", configErr.Key)

	var qErr *models.QueryError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, "active_sprint", qErr.Operation)
}

func TestComponentIssueCounts_IncludesNoComponentRow(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)

	counts, err := svc.ComponentIssueCounts(context.Background(), sess, 0)
	require.NoError(t, err)
	require.Len(t, counts, 3)

	names := make([]string, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.Component)
		assert.Equal(t, c.StoryTask+c.Bugs, c.Total)
	}
	assert.Contains(t, names, "No Component")
	assert.Contains(t, names, "Billing")

	// Sorted by total descending
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i-1].Total, counts[i].Total)
	}
}

func TestProjectComponents_PreferredOrder(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)
	svc.config.Jira.Components.PreferredOrder = []string{"API"}

	names, err := svc.ProjectComponents(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"API", "Billing"}, names)
}

func TestReleaseVersions(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)

	releases, err := svc.ReleaseVersions(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, releases.Released, 1)
	require.Len(t, releases.Upcoming, 1)
	assert.Equal(t, "1.0", releases.Released[0].Name)
	assert.Equal(t, "2.0", releases.Upcoming[0].Name)
}

func TestCapabilityStatus(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)

	status, err := svc.CapabilityStatus(context.Background(), sess, "Billing", 12)
	require.NoError(t, err)

	assert.Equal(t, "Billing", status.Component)
	// The fake returns 2 for Bug queries and 3 for everything else
	assert.Equal(t, 2, status.Defects.Total)
	assert.Equal(t, 3, status.Features.Total)
}

func TestCriticalHighIssues_UnknownComponent(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)

	_, err := svc.CriticalHighIssues(context.Background(), sess, "Nonexistent", 12, true)
	require.Error(t, err)

	var qErr *models.QueryError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, "critical_high_issues", qErr.Operation)
}

func TestFlaggedIssues(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)

	issues, err := svc.FlaggedIssues(context.Background(), sess, "API")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "DASH-1", issues[0].Key)
}

func TestRefresh_DropsCacheAndConnection(t *testing.T) {
	fj := newFakeJira(t)
	svc, sess := newTestService(t, fj)
	ctx := context.Background()

	_, err := svc.ProjectInfo(ctx, sess)
	require.NoError(t, err)
	before := fj.requests.Load()

	svc.Refresh(sess)

	_, err = svc.ProjectInfo(ctx, sess)
	require.NoError(t, err)

	// Refresh forces both a connection re-validation and a refetch
	assert.Greater(t, fj.requests.Load(), before)
}

func TestProvider_ValidationFailureNotCached(t *testing.T) {
	failures := atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failures.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	config := common.NewDefaultConfig()
	config.Jira.URL = server.URL
	config.Jira.Email = "svc@example.com"
	config.Jira.APIToken = "bad-token"
	config.Jira.ProjectKey = "DASH"

	provider := NewProvider(config, arbor.NewLogger())
	sess := models.NewSession("session-1")
	ctx := context.Background()

	_, err := provider.ClientFor(ctx, sess)
	var authErr *models.AuthenticationError
	require.True(t, errors.As(err, &authErr))

	// A second call re-validates instead of serving a broken handle
	_, err = provider.ClientFor(ctx, sess)
	require.Error(t, err)
	assert.Equal(t, int64(2), failures.Load())
}

func TestProvider_ReusesValidatedHandle(t *testing.T) {
	fj := newFakeJira(t)
	config := common.NewDefaultConfig()
	config.Jira.URL = fj.server.URL
	config.Jira.Email = "svc@example.com"
	config.Jira.APIToken = "token"
	config.Jira.ProjectKey = "DASH"

	provider := NewProvider(config, arbor.NewLogger())
	sess := models.NewSession("session-1")
	ctx := context.Background()

	a, err := provider.ClientFor(ctx, sess)
	require.NoError(t, err)
	b, err := provider.ClientFor(ctx, sess)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int64(1), fj.requests.Load())
}

func TestProvider_BearerForAuthenticatedJiraSession(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Jira.URL = "https://example.atlassian.net"
	config.Jira.ProjectKey = "DASH"

	provider := NewProvider(config, arbor.NewLogger())
	sess := models.NewSession("session-1")
	sess.UpdateAuth(func(a *models.SessionAuth) {
		a.State = models.StateAuthenticated
		a.Authenticated = true
		a.Provider = models.ProviderJira
		a.AccessToken = "oauth-token"
		a.CloudID = "cloud-1"
	})

	fp, build, err := provider.resolve(sess.Auth())
	require.NoError(t, err)
	assert.NotEmpty(t, fp)
	assert.Equal(t, "https://api.atlassian.com/ex/jira/cloud-1", build().BaseURL())
}

func TestProvider_NoCredentialsAndNoSession(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Jira.URL = "https://example.atlassian.net"
	config.Jira.ProjectKey = "DASH"

	provider := NewProvider(config, arbor.NewLogger())
	_, _, err := provider.resolve(models.SessionAuth{})

	var configErr *models.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}
