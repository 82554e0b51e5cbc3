package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wkeng/jiradash/internal/models"
)

// Project returns project metadata for the given key.
func (c *Client) Project(ctx context.Context, key string) (*models.Project, error) {
	data, err := c.get(ctx, "/rest/api/2/project/"+url.PathEscape(key))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	return &models.Project{
		Key:         raw.Key,
		Name:        raw.Name,
		Description: raw.Description,
	}, nil
}

// Components returns the project's components.
func (c *Client) Components(ctx context.Context, projectKey string) ([]models.Component, error) {
	data, err := c.get(ctx, "/rest/api/2/project/"+url.PathEscape(projectKey)+"/components")
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse components: %w", err)
	}

	components := make([]models.Component, 0, len(raw))
	for _, rc := range raw {
		components = append(components, models.Component{ID: rc.ID, Name: rc.Name})
	}
	return components, nil
}

// Versions returns the project's fix versions.
func (c *Client) Versions(ctx context.Context, projectKey string) ([]models.Version, error) {
	data, err := c.get(ctx, "/rest/api/2/project/"+url.PathEscape(projectKey)+"/versions")
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ReleaseDate string `json:"releaseDate"`
		Released    bool   `json:"released"`
		Archived    bool   `json:"archived"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse versions: %w", err)
	}

	versions := make([]models.Version, 0, len(raw))
	for _, rv := range raw {
		versions = append(versions, models.Version{
			ID:          rv.ID,
			Name:        rv.Name,
			Description: rv.Description,
			ReleaseDate: rv.ReleaseDate,
			Released:    rv.Released,
			Archived:    rv.Archived,
		})
	}
	return versions, nil
}

// ActiveSprint returns the board's active sprint, or nil when no sprint is
// active. The agile API returns a list; boards have at most one active
// sprint so the first entry wins.
func (c *Client) ActiveSprint(ctx context.Context, boardID int) (*models.Sprint, error) {
	path := "/rest/agile/1.0/board/" + strconv.Itoa(boardID) + "/sprint?state=active"
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Values []struct {
			ID        int    `json:"id"`
			Name      string `json:"name"`
			State     string `json:"state"`
			StartDate string `json:"startDate"`
			EndDate   string `json:"endDate"`
		} `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse sprints: %w", err)
	}

	if len(raw.Values) == 0 {
		return nil, nil
	}

	v := raw.Values[0]
	return &models.Sprint{
		ID:        v.ID,
		Name:      v.Name,
		State:     v.State,
		StartDate: normalizeSprintDate(v.StartDate),
		EndDate:   normalizeSprintDate(v.EndDate),
	}, nil
}

// Search runs a JQL query and returns the matching issues. Set expand to
// "changelog" to include issue history.
func (c *Client) Search(ctx context.Context, jql string, maxResults int, expand string) ([]models.Issue, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("fields", searchFields)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if expand != "" {
		params.Set("expand", expand)
	}

	data, err := c.get(ctx, "/rest/api/2/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var raw struct {
		Issues []rawIssue `json:"issues"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	issues := make([]models.Issue, 0, len(raw.Issues))
	for i := range raw.Issues {
		issues = append(issues, raw.Issues[i].toIssue())
	}
	return issues, nil
}

// Count returns the number of issues matching a JQL query without fetching
// any of them (maxResults=0 requests only the total).
func (c *Client) Count(ctx context.Context, jql string) (int, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", "0")
	params.Set("fields", "key")

	data, err := c.get(ctx, "/rest/api/2/search?"+params.Encode())
	if err != nil {
		return 0, err
	}

	var raw struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("failed to parse search total: %w", err)
	}
	return raw.Total, nil
}
