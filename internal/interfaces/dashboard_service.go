package interfaces

import (
	"context"

	"github.com/wkeng/jiradash/internal/models"
)

// DashboardService is the cached read-only query layer over the Jira REST
// API. Every operation resolves the session's connection handle lazily,
// consults the process-wide TTL cache (key = operation + parameters), and
// performs at most a small bounded number of HTTP requests on a miss.
// Failures surface as *models.QueryError carrying the operation name so a
// page can render the failed section inline while the rest continues.
type DashboardService interface {
	// ProjectInfo returns project metadata for the configured project.
	ProjectInfo(ctx context.Context, sess *models.Session) (*models.Project, error)

	// ActiveSprint returns the board's active sprint, or nil when the board
	// has no active sprint (an explicit empty-state, not an error).
	ActiveSprint(ctx context.Context, sess *models.Session) (*models.Sprint, error)

	// ComponentIssueCounts returns per-component Story/Task and Bug counts,
	// including a "No Component" row, sorted by total descending. Components
	// with no issues are omitted. A sprintID of 0 counts across the whole
	// project.
	ComponentIssueCounts(ctx context.Context, sess *models.Session, sprintID int) ([]models.ComponentCount, error)

	// ProjectComponents returns component names ordered by the configured
	// preferred order, remainder alphabetical.
	ProjectComponents(ctx context.Context, sess *models.Session) ([]string, error)

	// ReleaseVersions returns the top released and upcoming fix versions.
	ReleaseVersions(ctx context.Context, sess *models.Session) (*models.ReleaseVersions, error)

	// ComponentDetails returns counts, status breakdown, and recent issues
	// for one component.
	ComponentDetails(ctx context.Context, sess *models.Session, component string, sprintID int) (*models.ComponentDetails, error)

	// CapabilityStatus returns the capability matrix for one component.
	CapabilityStatus(ctx context.Context, sess *models.Session, component string, sprintID int) (*models.CapabilityStatus, error)

	// CapabilityHistory returns as-of-N-days-ago counts for delta display.
	CapabilityHistory(ctx context.Context, sess *models.Session, component string, sprintID, daysAgo int) (*models.CapabilityHistory, error)

	// CriticalHighIssues returns unresolved Critical/High issues for a
	// component, either in the given sprint or in the backlog.
	CriticalHighIssues(ctx context.Context, sess *models.Session, component string, sprintID int, sprintOnly bool) ([]models.Issue, error)

	// FlaggedIssues returns unresolved flagged issues with comments and
	// changelog populated.
	FlaggedIssues(ctx context.Context, sess *models.Session, component string) ([]models.Issue, error)

	// Refresh drops the session's connection handle and all cached query
	// results. The next operation re-validates credentials and refetches.
	Refresh(sess *models.Session)
}
