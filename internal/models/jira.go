package models

import "time"

// Project represents Jira project metadata.
type Project struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Component represents a project component.
type Component struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Sprint represents a board sprint from the agile API.
type Sprint struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ComponentCount holds per-component issue counts split by issue type.
type ComponentCount struct {
	Component string `json:"component"`
	StoryTask int    `json:"story_task"`
	Bugs      int    `json:"bugs"`
	Total     int    `json:"total"`
}

// Version represents a project fix version.
type Version struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ReleaseDate string `json:"release_date"`
	Released    bool   `json:"released"`
	Archived    bool   `json:"archived"`
}

// ReleaseVersions partitions project versions into released and upcoming.
// Released is sorted newest first, Upcoming soonest first; both capped at 5.
type ReleaseVersions struct {
	Released []Version `json:"released"`
	Upcoming []Version `json:"upcoming"`
}

// Comment is a single issue comment.
type Comment struct {
	Body    string    `json:"body"`
	Author  string    `json:"author"`
	Created time.Time `json:"created"`
}

// ChangeItem is one field change inside a changelog entry.
type ChangeItem struct {
	Field      string `json:"field"`
	FromString string `json:"from_string"`
	ToString   string `json:"to_string"`
}

// ChangeGroup is one changelog entry with its change items.
type ChangeGroup struct {
	Created time.Time    `json:"created"`
	Items   []ChangeItem `json:"items"`
}

// Issue is the typed projection of a Jira issue used by the dashboard.
// Raw JSON is converted into this at the query-layer boundary; optional
// fields are zero-valued when absent.
type Issue struct {
	Key                string        `json:"key"`
	Summary            string        `json:"summary"`
	Status             string        `json:"status"`
	Priority           string        `json:"priority"`
	IssueType          string        `json:"issue_type"`
	Assignee           string        `json:"assignee"`
	Created            time.Time     `json:"created"`
	Updated            time.Time     `json:"updated"`
	DueDate            string        `json:"due_date"`
	Description        string        `json:"description"`
	ResolutionApproach string        `json:"resolution_approach"`
	SprintEndDate      string        `json:"sprint_end_date"`
	Comments           []Comment     `json:"comments,omitempty"`
	Changelog          []ChangeGroup `json:"changelog,omitempty"`
}

// ComponentDetails aggregates a component's issue counts and recent activity.
type ComponentDetails struct {
	Name            string         `json:"name"`
	StoryTaskCount  int            `json:"story_task_count"`
	BugsCount       int            `json:"bugs_count"`
	TotalCount      int            `json:"total_count"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	RecentIssues    []Issue        `json:"recent_issues"`
}

// CapabilityCounts is one row of the capability matrix for a single issue
// class (defects or features).
type CapabilityCounts struct {
	BacklogCritical    int `json:"backlog_critical"`
	BacklogHigh        int `json:"backlog_high"`
	BacklogMedium      int `json:"backlog_medium"`
	BacklogLow         int `json:"backlog_low"`
	SprintCritical     int `json:"sprint_critical"`
	SprintHigh         int `json:"sprint_high"`
	SprintMedium       int `json:"sprint_medium"`
	SprintLow          int `json:"sprint_low"`
	Total              int `json:"total"`
	ResolvedLast30Days int `json:"resolved_last_30_days"`
	AddedLast30Days    int `json:"added_last_30_days"`
}

// CapabilityStatus is the full capability matrix for a component.
type CapabilityStatus struct {
	Component string           `json:"component"`
	Defects   CapabilityCounts `json:"defects"`
	Features  CapabilityCounts `json:"features"`
}

// HistoricalCounts are the as-of-N-days-ago counts used for week-over-week
// comparison.
type HistoricalCounts struct {
	Total              int `json:"total"`
	AddedLast30Days    int `json:"added_last_30_days"`
	ResolvedLast30Days int `json:"resolved_last_30_days"`
}

// CapabilityHistory holds historical counts per issue class.
type CapabilityHistory struct {
	Component string           `json:"component"`
	DaysAgo   int              `json:"days_ago"`
	Defects   HistoricalCounts `json:"defects"`
	Features  HistoricalCounts `json:"features"`
}
