package jira

import (
	"sort"
	"strings"
	"time"

	"github.com/wkeng/jiradash/internal/models"
)

// UnsetDate is the placeholder shown when an issue has no usable date.
const UnsetDate = "N/A"

const (
	resolutionApproachMaxLen = 500
	flagCommentMaxLen        = 150
	flagCommentTolerance     = 5 * time.Minute
)

// TargetCompletionDate returns the issue's target date: the due date when
// set, otherwise the issue's sprint end date, otherwise the unset marker.
// fromSprint is true when the date came from the sprint.
func TargetCompletionDate(issue models.Issue) (date string, fromSprint bool) {
	if issue.DueDate != "" {
		return issue.DueDate, false
	}
	if issue.SprintEndDate != "" {
		return issue.SprintEndDate, true
	}
	return UnsetDate, false
}

// ResolutionApproach returns the issue's resolution approach text, trimmed
// and truncated, or the unset marker when the field is absent.
func ResolutionApproach(issue models.Issue) string {
	text := strings.TrimSpace(issue.ResolutionApproach)
	if text == "" || strings.EqualFold(text, "none") {
		return UnsetDate
	}
	if len(text) > resolutionApproachMaxLen {
		text = text[:resolutionApproachMaxLen]
	}
	return text
}

// FlaggedComment returns the comment explaining why an issue is flagged.
// The changelog locates when the Flagged field was set and the comment
// nearest that time wins. Flags are often followed by further discussion,
// so absent a timing match the second-to-last comment is preferred over
// the last, then the description, then a placeholder.
func FlaggedComment(issue models.Issue) string {
	if len(issue.Comments) > 0 {
		if c := commentNearestFlag(issue); c != nil {
			return truncateComment(c.Body)
		}
		if len(issue.Comments) >= 2 {
			return truncateComment(issue.Comments[len(issue.Comments)-2].Body)
		}
		return truncateComment(issue.Comments[len(issue.Comments)-1].Body)
	}
	if issue.Description != "" {
		return truncateComment(issue.Description)
	}
	return "No comment"
}

// commentNearestFlag finds the comment closest to the moment the Flagged
// field was set, within the tolerance window. Returns nil when the
// changelog has no flag event or no comment lands inside the window.
func commentNearestFlag(issue models.Issue) *models.Comment {
	var flagTime time.Time
	for _, group := range issue.Changelog {
		for _, item := range group.Items {
			if item.Field == "Flagged" && strings.TrimSpace(item.ToString) != "" {
				flagTime = group.Created
				break
			}
		}
		if !flagTime.IsZero() {
			break
		}
	}
	if flagTime.IsZero() {
		return nil
	}

	var closest *models.Comment
	var smallest time.Duration
	for i := range issue.Comments {
		diff := flagTime.Sub(issue.Comments[i].Created)
		if diff < 0 {
			diff = -diff
		}
		if diff <= flagCommentTolerance && (closest == nil || diff < smallest) {
			closest = &issue.Comments[i]
			smallest = diff
		}
	}
	return closest
}

func truncateComment(body string) string {
	if body == "" {
		return "No comment text"
	}
	if len(body) > flagCommentMaxLen {
		return body[:flagCommentMaxLen] + "..."
	}
	return body
}

// IsDatePast reports whether a date string is strictly before today.
// "Not set", the unset marker, and unparseable values are never past.
func IsDatePast(dateString string) bool {
	return isDatePastAt(dateString, time.Now())
}

func isDatePastAt(dateString string, now time.Time) bool {
	if dateString == "" || dateString == "Not set" || dateString == UnsetDate {
		return false
	}

	var day time.Time
	if i := strings.IndexByte(dateString, 'T'); i >= 0 {
		t := parseJiraTime(dateString)
		if t.IsZero() {
			return false
		}
		day = t
	} else {
		t, err := time.Parse("2006-01-02", dateString)
		if err != nil {
			return false
		}
		day = t
	}

	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	date := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return date.Before(today)
}

// orderComponents returns names sorted by the preferred order first, then
// the remainder alphabetically. A preferred entry claims the first component
// whose name contains it, case-insensitively.
func orderComponents(preferred, names []string) []string {
	ordered := make([]string, 0, len(names))
	used := make(map[string]bool, len(names))
	for _, p := range preferred {
		for _, n := range names {
			if !used[n] && strings.Contains(strings.ToLower(n), strings.ToLower(p)) {
				ordered = append(ordered, n)
				used[n] = true
				break
			}
		}
	}

	var rest []string
	for _, n := range names {
		if !used[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// splitReleaseVersions partitions versions into released (newest first) and
// upcoming (soonest first), each capped at five. Both lists require a
// release date; the upcoming list additionally excludes archived versions.
func splitReleaseVersions(versions []models.Version) *models.ReleaseVersions {
	result := &models.ReleaseVersions{}
	for _, v := range versions {
		if v.ReleaseDate == "" {
			continue
		}
		if v.Released {
			result.Released = append(result.Released, v)
		} else if !v.Archived {
			result.Upcoming = append(result.Upcoming, v)
		}
	}

	sort.SliceStable(result.Released, func(i, j int) bool {
		return result.Released[i].ReleaseDate > result.Released[j].ReleaseDate
	})
	sort.SliceStable(result.Upcoming, func(i, j int) bool {
		return result.Upcoming[i].ReleaseDate < result.Upcoming[j].ReleaseDate
	})

	if len(result.Released) > 5 {
		result.Released = result.Released[:5]
	}
	if len(result.Upcoming) > 5 {
		result.Upcoming = result.Upcoming[:5]
	}
	return result
}
