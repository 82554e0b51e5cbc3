package jira

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/wkeng/jiradash/internal/models"
)

// jiraTimeFormat is the timestamp format used by the Jira REST API.
const jiraTimeFormat = "2006-01-02T15:04:05.000-0700"

// rawIssue mirrors the JSON shape of a Jira issue from the v2 search API.
// Conversion to models.Issue happens here and nowhere else.
type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  *struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType *struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Created     string `json:"created"`
		Updated     string `json:"updated"`
		DueDate     string `json:"duedate"`
		Description string `json:"description"`
		Comment     *struct {
			Comments []rawComment `json:"comments"`
		} `json:"comment"`
		Sprints            []json.RawMessage `json:"customfield_10020"`
		ResolutionApproach json.RawMessage   `json:"customfield_11249"`
	} `json:"fields"`
	Changelog *struct {
		Histories []struct {
			Created string `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

type rawComment struct {
	Body   string `json:"body"`
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Created string `json:"created"`
}

// toIssue converts a raw issue into the typed DTO. Optional fields missing
// from the payload become zero values; nothing here fails.
func (ri *rawIssue) toIssue() models.Issue {
	issue := models.Issue{
		Key:                ri.Key,
		Summary:            ri.Fields.Summary,
		Created:            parseJiraTime(ri.Fields.Created),
		Updated:            parseJiraTime(ri.Fields.Updated),
		DueDate:            ri.Fields.DueDate,
		Description:        ri.Fields.Description,
		ResolutionApproach: flexString(ri.Fields.ResolutionApproach),
		SprintEndDate:      sprintEndDate(ri.Fields.Sprints),
	}
	if ri.Fields.Status != nil {
		issue.Status = ri.Fields.Status.Name
	}
	if ri.Fields.Priority != nil {
		issue.Priority = ri.Fields.Priority.Name
	}
	if ri.Fields.IssueType != nil {
		issue.IssueType = ri.Fields.IssueType.Name
	}
	if ri.Fields.Assignee != nil {
		issue.Assignee = ri.Fields.Assignee.DisplayName
	}
	if ri.Fields.Comment != nil {
		for _, rc := range ri.Fields.Comment.Comments {
			issue.Comments = append(issue.Comments, models.Comment{
				Body:    rc.Body,
				Author:  rc.Author.DisplayName,
				Created: parseJiraTime(rc.Created),
			})
		}
	}
	if ri.Changelog != nil {
		for _, h := range ri.Changelog.Histories {
			group := models.ChangeGroup{Created: parseJiraTime(h.Created)}
			for _, item := range h.Items {
				group.Items = append(group.Items, models.ChangeItem{
					Field:      item.Field,
					FromString: item.FromString,
					ToString:   item.ToString,
				})
			}
			issue.Changelog = append(issue.Changelog, group)
		}
	}
	return issue
}

// parseJiraTime parses a Jira timestamp, falling back to RFC3339 and then
// the zero value. Callers treat the zero value as "unknown".
func parseJiraTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(jiraTimeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// flexString extracts a string from a field that may be a plain string or a
// {"value": ...} / {"name": ...} option object.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		Value string `json:"value"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Value != "" {
			return strings.TrimSpace(obj.Value)
		}
		if obj.Name != "" {
			return strings.TrimSpace(obj.Name)
		}
	}
	return ""
}

// greenhopperEndDate extracts endDate= from the legacy serialized sprint
// string ("com.atlassian.greenhopper...[id=5,state=ACTIVE,endDate=...,...]").
var greenhopperEndDate = regexp.MustCompile(`endDate=([^,\]]+)`)

// sprintEndDate extracts the end date of the issue's sprint. Entries may be
// sprint objects (current Jira Cloud) or legacy serialized strings; active
// sprints win over closed ones, otherwise the last entry is used.
func sprintEndDate(entries []json.RawMessage) string {
	type sprintRef struct {
		State   string `json:"state"`
		EndDate string `json:"endDate"`
	}

	var fallback string
	for _, raw := range entries {
		var ref sprintRef
		if err := json.Unmarshal(raw, &ref); err == nil && ref.EndDate != "" {
			if strings.EqualFold(ref.State, "active") {
				return normalizeSprintDate(ref.EndDate)
			}
			fallback = ref.EndDate
			continue
		}

		var legacy string
		if err := json.Unmarshal(raw, &legacy); err == nil {
			if m := greenhopperEndDate.FindStringSubmatch(legacy); m != nil && m[1] != "<null>" {
				if strings.Contains(legacy, "state=ACTIVE") {
					return normalizeSprintDate(m[1])
				}
				fallback = m[1]
			}
		}
	}
	return normalizeSprintDate(fallback)
}

// normalizeSprintDate reduces a sprint timestamp to YYYY-MM-DD.
func normalizeSprintDate(s string) string {
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, 'T'); i >= 10 {
		return s[:10]
	}
	if len(s) >= 10 {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return s[:10]
		}
	}
	return s
}
