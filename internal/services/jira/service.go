package jira

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wkeng/jiradash/internal/common"
	"github.com/wkeng/jiradash/internal/interfaces"
	"github.com/wkeng/jiradash/internal/models"
	"github.com/wkeng/jiradash/internal/services/cache"
)

// Service is the cached read-only query layer. Every operation resolves a
// connection handle for the session, consults the process-wide TTL cache,
// and fetches from Jira only on a miss. Failures are wrapped in QueryError
// with the operation name; the underlying taxonomy stays reachable through
// Unwrap.
type Service struct {
	config   *common.Config
	provider *Provider
	cache    *cache.Cache
	logger   arbor.ILogger
}

// NewService creates the dashboard query service.
func NewService(config *common.Config, provider *Provider, store *cache.Cache, logger arbor.ILogger) interfaces.DashboardService {
	return &Service{
		config:   config,
		provider: provider,
		cache:    store,
		logger:   logger,
	}
}

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &models.QueryError{Operation: op, Err: err}
}

// ProjectInfo returns metadata for the configured project.
func (s *Service) ProjectInfo(ctx context.Context, sess *models.Session) (*models.Project, error) {
	const op = "project_info"
	key := cache.Key(op, s.config.Jira.ProjectKey)

	project, err := cache.Fetch(s.cache, key, func() (*models.Project, error) {
		client, err := s.provider.ClientFor(ctx, sess)
		if err != nil {
			return nil, err
		}
		return client.Project(ctx, s.config.Jira.ProjectKey)
	})
	return project, queryErr(op, err)
}

// ActiveSprint returns the board's active sprint or nil when none is
// active. A missing board id is a configuration problem, not a crash.
func (s *Service) ActiveSprint(ctx context.Context, sess *models.Session) (*models.Sprint, error) {
	const op = "active_sprint"
	if s.config.Jira.BoardID == 0 {
		return nil, queryErr(op, models.NewConfigurationError("jira.board_id", "JIRA_BOARD_ID", "board id is not configured"))
	}

	key := cache.Key(op, s.config.Jira.BoardID)
	sprint, err := cache.Fetch(s.cache, key, func() (*models.Sprint, error) {
		client, err := s.provider.ClientFor(ctx, sess)
		if err != nil {
			return nil, err
		}
		return client.ActiveSprint(ctx, s.config.Jira.BoardID)
	})
	return sprint, queryErr(op, err)
}

// ProjectComponents returns component names in the configured preferred
// order, remainder alphabetical.
func (s *Service) ProjectComponents(ctx context.Context, sess *models.Session) ([]string, error) {
	const op = "project_components"
	components, err := s.components(ctx, sess)
	if err != nil {
		return nil, queryErr(op, err)
	}

	names := make([]string, 0, len(components))
	for _, c := range components {
		names = append(names, c.Name)
	}
	return orderComponents(s.config.Jira.Components.PreferredOrder, names), nil
}

// ComponentIssueCounts returns per-component Story/Task and Bug counts plus
// a "No Component" row, sorted by total descending. Zero-total rows are
// dropped. sprintID 0 counts across the whole project.
func (s *Service) ComponentIssueCounts(ctx context.Context, sess *models.Session, sprintID int) ([]models.ComponentCount, error) {
	const op = "component_issue_counts"
	key := cache.Key(op, s.config.Jira.ProjectKey, sprintID)

	counts, err := cache.Fetch(s.cache, key, func() ([]models.ComponentCount, error) {
		client, err := s.provider.ClientFor(ctx, sess)
		if err != nil {
			return nil, err
		}

		components, err := client.Components(ctx, s.config.Jira.ProjectKey)
		if err != nil {
			return nil, err
		}

		sprintFilter := ""
		if sprintID != 0 {
			sprintFilter = fmt.Sprintf(" AND sprint = %d", sprintID)
		}

		var counts []models.ComponentCount
		for _, comp := range components {
			row, err := s.countRow(ctx, client, comp.Name, "component = "+comp.ID, sprintFilter)
			if err != nil {
				return nil, err
			}
			if row.Total > 0 {
				counts = append(counts, row)
			}
		}

		noComp, err := s.countRow(ctx, client, "No Component", "component is EMPTY", sprintFilter)
		if err != nil {
			return nil, err
		}
		if noComp.Total > 0 {
			counts = append(counts, noComp)
		}

		sort.SliceStable(counts, func(i, j int) bool {
			return counts[i].Total > counts[j].Total
		})
		return counts, nil
	})
	return counts, queryErr(op, err)
}

func (s *Service) countRow(ctx context.Context, client *Client, name, componentClause, sprintFilter string) (models.ComponentCount, error) {
	base := fmt.Sprintf("project = %s AND %s", s.config.Jira.ProjectKey, componentClause)

	storyTask, err := client.Count(ctx, base+" AND type in (Story, Task)"+sprintFilter)
	if err != nil {
		return models.ComponentCount{}, err
	}
	bugs, err := client.Count(ctx, base+" AND type = Bug"+sprintFilter)
	if err != nil {
		return models.ComponentCount{}, err
	}

	return models.ComponentCount{
		Component: name,
		StoryTask: storyTask,
		Bugs:      bugs,
		Total:     storyTask + bugs,
	}, nil
}

// ReleaseVersions returns the top released and upcoming fix versions.
func (s *Service) ReleaseVersions(ctx context.Context, sess *models.Session) (*models.ReleaseVersions, error) {
	const op = "release_versions"
	key := cache.Key(op, s.config.Jira.ProjectKey)

	result, err := cache.Fetch(s.cache, key, func() (*models.ReleaseVersions, error) {
		client, err := s.provider.ClientFor(ctx, sess)
		if err != nil {
			return nil, err
		}
		versions, err := client.Versions(ctx, s.config.Jira.ProjectKey)
		if err != nil {
			return nil, err
		}
		return splitReleaseVersions(versions), nil
	})
	return result, queryErr(op, err)
}

// ComponentDetails returns counts, a status breakdown, and recent issues
// for one component.
func (s *Service) ComponentDetails(ctx context.Context, sess *models.Session, component string, sprintID int) (*models.ComponentDetails, error) {
	const op = "component_details"
	key := cache.Key(op, s.config.Jira.ProjectKey, component, sprintID)

	details, err := cache.Fetch(s.cache, key, func() (*models.ComponentDetails, error) {
		client, componentID, err := s.resolveComponent(ctx, sess, component)
		if err != nil {
			return nil, err
		}

		sprintFilter := ""
		if sprintID != 0 {
			sprintFilter = fmt.Sprintf(" AND sprint = %d", sprintID)
		}
		base := fmt.Sprintf("project = %s AND component = %s%s", s.config.Jira.ProjectKey, componentID, sprintFilter)

		issues, err := client.Search(ctx, base+" ORDER BY updated DESC", 50, "")
		if err != nil {
			return nil, err
		}
		storyTask, err := client.Count(ctx, base+" AND type in (Story, Task)")
		if err != nil {
			return nil, err
		}
		bugs, err := client.Count(ctx, base+" AND type = Bug")
		if err != nil {
			return nil, err
		}

		breakdown := make(map[string]int)
		for _, issue := range issues {
			breakdown[issue.Status]++
		}

		recent := issues
		if len(recent) > 10 {
			recent = recent[:10]
		}

		return &models.ComponentDetails{
			Name:            component,
			StoryTaskCount:  storyTask,
			BugsCount:       bugs,
			TotalCount:      storyTask + bugs,
			StatusBreakdown: breakdown,
			RecentIssues:    recent,
		}, nil
	})
	return details, queryErr(op, err)
}

// CapabilityStatus returns the capability matrix for one component: per
// priority bucket counts split by sprint and backlog, plus totals and the
// 30-day added/resolved counts, for defects and features separately.
func (s *Service) CapabilityStatus(ctx context.Context, sess *models.Session, component string, sprintID int) (*models.CapabilityStatus, error) {
	const op = "capability_status"
	key := cache.Key(op, s.config.Jira.ProjectKey, component, sprintID)

	status, err := cache.Fetch(s.cache, key, func() (*models.CapabilityStatus, error) {
		client, componentID, err := s.resolveComponent(ctx, sess, component)
		if err != nil {
			return nil, err
		}

		thirtyDaysAgo := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
		compFilter := "AND component = " + componentID
		backlog := fmt.Sprintf("AND (sprint != %d OR sprint is EMPTY)", sprintID)
		sprint := fmt.Sprintf("AND sprint = %d", sprintID)

		criteria := []string{
			fmt.Sprintf("%s AND resolution = Unresolved AND priority IN (Highest, Critical) %s", compFilter, backlog),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority = High %s", compFilter, backlog),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority = Medium %s", compFilter, backlog),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority IN (Low, Lowest) %s", compFilter, backlog),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority IN (Highest, Critical) %s", compFilter, sprint),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority = High %s", compFilter, sprint),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority = Medium %s", compFilter, sprint),
			fmt.Sprintf("%s AND resolution = Unresolved AND priority IN (Low, Lowest) %s", compFilter, sprint),
			compFilter + " AND resolution = Unresolved",
			fmt.Sprintf("%s AND resolved >= %s AND status != Cancelled", compFilter, thirtyDaysAgo),
			fmt.Sprintf("%s AND created >= %s", compFilter, thirtyDaysAgo),
		}

		defects, err := s.countCriteria(ctx, client, criteria, "AND type = Bug")
		if err != nil {
			return nil, err
		}
		features, err := s.countCriteria(ctx, client, criteria, "AND (type = Story OR type = Task)")
		if err != nil {
			return nil, err
		}

		return &models.CapabilityStatus{
			Component: component,
			Defects:   toCapabilityCounts(defects),
			Features:  toCapabilityCounts(features),
		}, nil
	})
	return status, queryErr(op, err)
}

func (s *Service) countCriteria(ctx context.Context, client *Client, criteria []string, typeClause string) ([]int, error) {
	counts := make([]int, len(criteria))
	for i, clause := range criteria {
		jql := fmt.Sprintf("project = %s %s %s", s.config.Jira.ProjectKey, clause, typeClause)
		n, err := client.Count(ctx, jql)
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}
	return counts, nil
}

func toCapabilityCounts(c []int) models.CapabilityCounts {
	return models.CapabilityCounts{
		BacklogCritical:    c[0],
		BacklogHigh:        c[1],
		BacklogMedium:      c[2],
		BacklogLow:         c[3],
		SprintCritical:     c[4],
		SprintHigh:         c[5],
		SprintMedium:       c[6],
		SprintLow:          c[7],
		Total:              c[8],
		ResolvedLast30Days: c[9],
		AddedLast30Days:    c[10],
	}
}

// CapabilityHistory returns as-of-N-days-ago counts for week-over-week
// deltas. "Added in last 30 days" as of N days ago covers the window from
// N+30 days ago to N days ago.
func (s *Service) CapabilityHistory(ctx context.Context, sess *models.Session, component string, sprintID, daysAgo int) (*models.CapabilityHistory, error) {
	const op = "capability_history"
	key := cache.Key(op, s.config.Jira.ProjectKey, component, sprintID, daysAgo)

	history, err := cache.Fetch(s.cache, key, func() (*models.CapabilityHistory, error) {
		client, componentID, err := s.resolveComponent(ctx, sess, component)
		if err != nil {
			return nil, err
		}

		asOf := time.Now().AddDate(0, 0, -daysAgo).Format("2006-01-02")
		windowStart := time.Now().AddDate(0, 0, -(daysAgo + 30)).Format("2006-01-02")
		compFilter := "AND component = " + componentID

		criteria := []string{
			fmt.Sprintf("%s AND resolution = Unresolved AND created < %q", compFilter, asOf),
			fmt.Sprintf("%s AND created >= %q AND created < %q", compFilter, windowStart, asOf),
			fmt.Sprintf("%s AND resolved >= %q AND status != %q AND resolved < %q", compFilter, windowStart, "Cancelled", asOf),
		}

		defects, err := s.countCriteria(ctx, client, criteria, "AND type = Bug")
		if err != nil {
			return nil, err
		}
		features, err := s.countCriteria(ctx, client, criteria, "AND (type = Story OR type = Task)")
		if err != nil {
			return nil, err
		}

		return &models.CapabilityHistory{
			Component: component,
			DaysAgo:   daysAgo,
			Defects:   models.HistoricalCounts{Total: defects[0], AddedLast30Days: defects[1], ResolvedLast30Days: defects[2]},
			Features:  models.HistoricalCounts{Total: features[0], AddedLast30Days: features[1], ResolvedLast30Days: features[2]},
		}, nil
	})
	return history, queryErr(op, err)
}

// CriticalHighIssues returns unresolved Critical/High issues for a
// component, limited to the sprint or to the backlog.
func (s *Service) CriticalHighIssues(ctx context.Context, sess *models.Session, component string, sprintID int, sprintOnly bool) ([]models.Issue, error) {
	const op = "critical_high_issues"
	key := cache.Key(op, s.config.Jira.ProjectKey, component, sprintID, sprintOnly)

	issues, err := cache.Fetch(s.cache, key, func() ([]models.Issue, error) {
		client, componentID, err := s.resolveComponent(ctx, sess, component)
		if err != nil {
			return nil, err
		}

		base := fmt.Sprintf("project = %s AND component = %s AND resolution = Unresolved AND priority IN (Highest, Critical, High) AND type IN (Story, Task, Bug)",
			s.config.Jira.ProjectKey, componentID)

		var jql string
		if sprintOnly {
			jql = fmt.Sprintf("%s AND sprint = %d ORDER BY priority DESC, created DESC", base, sprintID)
		} else {
			jql = fmt.Sprintf("%s AND (sprint != %d OR sprint is EMPTY) ORDER BY priority DESC, created DESC", base, sprintID)
		}

		return client.Search(ctx, jql, 100, "changelog")
	})
	return issues, queryErr(op, err)
}

// FlaggedIssues returns unresolved flagged issues for a component with
// comments and changelog populated for flag-comment extraction. An empty
// component returns flagged issues project-wide.
func (s *Service) FlaggedIssues(ctx context.Context, sess *models.Session, component string) ([]models.Issue, error) {
	const op = "flagged_issues"
	key := cache.Key(op, s.config.Jira.ProjectKey, component)

	issues, err := cache.Fetch(s.cache, key, func() ([]models.Issue, error) {
		componentFilter := ""
		var client *Client
		var err error
		if component != "" {
			var componentID string
			client, componentID, err = s.resolveComponent(ctx, sess, component)
			if err != nil {
				return nil, err
			}
			componentFilter = "AND component = " + componentID + " "
		} else {
			client, err = s.provider.ClientFor(ctx, sess)
			if err != nil {
				return nil, err
			}
		}

		jql := fmt.Sprintf("project = %s %sAND flagged is not EMPTY AND resolution = Unresolved ORDER BY priority DESC, created DESC",
			s.config.Jira.ProjectKey, componentFilter)
		return client.Search(ctx, jql, 100, "changelog")
	})
	return issues, queryErr(op, err)
}

// Refresh drops the session's connection handle and every cached result.
func (s *Service) Refresh(sess *models.Session) {
	s.provider.Invalidate(sess.ID)
	s.cache.Invalidate("")
	s.logger.Info().Str("session", sess.ID).Msg("Cache and connection refreshed")
}

// components returns the project's component list through the cache.
func (s *Service) components(ctx context.Context, sess *models.Session) ([]models.Component, error) {
	key := cache.Key("components", s.config.Jira.ProjectKey)
	return cache.Fetch(s.cache, key, func() ([]models.Component, error) {
		client, err := s.provider.ClientFor(ctx, sess)
		if err != nil {
			return nil, err
		}
		return client.Components(ctx, s.config.Jira.ProjectKey)
	})
}

// resolveComponent looks up a component's id by name. Component filters use
// ids so renames and reserved characters in names cannot break the JQL.
func (s *Service) resolveComponent(ctx context.Context, sess *models.Session, name string) (*Client, string, error) {
	client, err := s.provider.ClientFor(ctx, sess)
	if err != nil {
		return nil, "", err
	}

	components, err := s.components(ctx, sess)
	if err != nil {
		return nil, "", err
	}
	for _, c := range components {
		if strings.EqualFold(c.Name, name) {
			return client, c.ID, nil
		}
	}
	return nil, "", fmt.Errorf("component %q not found in project %s", name, s.config.Jira.ProjectKey)
}
