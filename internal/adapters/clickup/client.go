// Package clickup implements the workspace client against the ClickUp v2 REST API.
package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// DefaultBaseURL is the public ClickUp v2 API root.
const DefaultBaseURL = "https://api.clickup.com/api/v2"

// maxTaskPages bounds task pagination for one list.
const maxTaskPages = 500

// Config holds client settings.
type Config struct {
	// BaseURL is the API root (default DefaultBaseURL).
	BaseURL string
	// Token is the personal API token sent in the Authorization header.
	Token string
	// TeamID scopes workspace enumeration.
	TeamID string
	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// APIError reports a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error implements error.
func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("clickup %s %s returned status %d: %s", e.Method, e.Path, e.Status, body)
}

// Client implements app.WorkspaceClient.
type Client struct {
	baseURL string
	token   string
	teamID  string
	http    *http.Client
}

// New creates a ClickUp client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("clickup api token is required")
	}
	if strings.TrimSpace(cfg.TeamID) == "" {
		return nil, errors.New("clickup team id is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse clickup base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		teamID:  strings.TrimSpace(cfg.TeamID),
		http:    client,
	}, nil
}

// ListWorkspaces returns the non-archived spaces of the configured team.
func (c *Client) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	var resp struct {
		Spaces []wireSpace `json:"spaces"`
	}
	if err := c.get(ctx, "/team/"+url.PathEscape(c.teamID)+"/space", url.Values{"archived": {"false"}}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Workspace, 0, len(resp.Spaces))
	for _, space := range resp.Spaces {
		out = append(out, space.domain())
	}
	return out, nil
}

// ListFolders returns the folders of one space.
func (c *Client) ListFolders(ctx context.Context, workspaceID string) ([]domain.Folder, error) {
	var resp struct {
		Folders []wireFolder `json:"folders"`
	}
	if err := c.get(ctx, "/space/"+url.PathEscape(workspaceID)+"/folder", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Folder, 0, len(resp.Folders))
	for _, folder := range resp.Folders {
		out = append(out, folder.domain())
	}
	return out, nil
}

// ListLists returns the lists of one space.
func (c *Client) ListLists(ctx context.Context, workspaceID string) ([]domain.List, error) {
	var resp struct {
		Lists []wireList `json:"lists"`
	}
	if err := c.get(ctx, "/space/"+url.PathEscape(workspaceID)+"/list", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.List, 0, len(resp.Lists))
	for _, list := range resp.Lists {
		out = append(out, list.domain())
	}
	return out, nil
}

// ListSprints returns the sprints of one space.
func (c *Client) ListSprints(ctx context.Context, workspaceID string) ([]domain.Sprint, error) {
	var resp struct {
		Sprints []wireSprint `json:"sprints"`
	}
	if err := c.get(ctx, "/space/"+url.PathEscape(workspaceID)+"/sprint", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Sprint, 0, len(resp.Sprints))
	for _, sprint := range resp.Sprints {
		out = append(out, sprint.domain())
	}
	return out, nil
}

// GetSprintDetail returns the enrichment payload of one sprint.
func (c *Client) GetSprintDetail(ctx context.Context, sprintID string) (*domain.SprintDetail, error) {
	var resp wireSprintDetail
	if err := c.get(ctx, "/sprint/"+url.PathEscape(sprintID), nil, &resp); err != nil {
		return nil, err
	}
	return &domain.SprintDetail{
		Goal:            resp.Goal,
		Points:          float64(resp.Points),
		CompletedPoints: float64(resp.CompletedPoints),
		TotalTasks:      int(resp.TotalTasks),
		CompletedTasks:  int(resp.CompletedTasks),
	}, nil
}

// ListTasks returns every task of one list, closed tasks and subtasks included,
// following pagination until the last page.
func (c *Client) ListTasks(ctx context.Context, listID string) ([]domain.Task, error) {
	out := []domain.Task{}
	for page := 0; page < maxTaskPages; page++ {
		var resp struct {
			Tasks    []wireTask `json:"tasks"`
			LastPage *bool      `json:"last_page"`
		}
		query := taskQuery()
		query.Set("page", strconv.Itoa(page))
		if err := c.get(ctx, "/list/"+url.PathEscape(listID)+"/task", query, &resp); err != nil {
			return nil, err
		}
		for _, task := range resp.Tasks {
			out = append(out, task.domain())
		}
		if len(resp.Tasks) == 0 || resp.LastPage == nil || *resp.LastPage {
			return out, nil
		}
	}
	return nil, fmt.Errorf("list %s: task pagination exceeded %d pages", listID, maxTaskPages)
}

// ListSprintTasks returns the tasks planned into one sprint.
func (c *Client) ListSprintTasks(ctx context.Context, sprintID string) ([]domain.Task, error) {
	var resp struct {
		Tasks []wireTask `json:"tasks"`
	}
	if err := c.get(ctx, "/sprint/"+url.PathEscape(sprintID)+"/task", taskQuery(), &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(resp.Tasks))
	for _, task := range resp.Tasks {
		out = append(out, task.domain())
	}
	return out, nil
}

func taskQuery() url.Values {
	return url.Values{"include_closed": {"true"}, "subtasks": {"true"}}
}

// get issues one authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clickup GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: http.MethodGet, Path: path, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode clickup GET %s: %w", path, err)
	}
	return nil
}
