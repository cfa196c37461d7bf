package roadmapsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal roadmap HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no other credential is set.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Project struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Public    bool     `json:"public"`
	CreatedBy string   `json:"created_by"`
	Packages  []string `json:"packages"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

type Objective struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type HistoryEntry struct {
	At     string `json:"at"`
	By     string `json:"by"`
	Action string `json:"action"`
}

type Task struct {
	ID                   string         `json:"id"`
	ProjectID            string         `json:"project_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Package              string         `json:"package"`
	Priority             string         `json:"priority"`
	Complexity           int            `json:"complexity"`
	State                string         `json:"state"`
	Rank                 string         `json:"rank"`
	AcceptedBy           *string        `json:"accepted_by"`
	CompletedBy          *string        `json:"completed_by"`
	Objectives           []Objective    `json:"objectives"`
	IncompleteObjectives int            `json:"incomplete_objectives"`
	History              []HistoryEntry `json:"history"`
	UpdatedAt            string         `json:"updated_at"`
}

// NewTask is the payload for CreateTask.
type NewTask struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Package     string      `json:"package,omitempty"`
	Priority    string      `json:"priority"`
	Complexity  int         `json:"complexity"`
	Objectives  []Objective `json:"objectives,omitempty"`
}

// TaskEdit is the payload for EditTask; nil fields are left unchanged.
type TaskEdit struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Package     *string      `json:"package,omitempty"`
	Priority    *string      `json:"priority,omitempty"`
	Complexity  *int         `json:"complexity,omitempty"`
	Objectives  *[]Objective `json:"objectives,omitempty"`
}

type Purse struct {
	Gold   int `json:"gold"`
	Silver int `json:"silver"`
}

type Sheet struct {
	Level          int   `json:"level"`
	XP             int   `json:"xp"`
	CurrentInLevel int   `json:"current_in_level"`
	RequiredLevel  int   `json:"required_for_level"`
	ToNextLevel    int   `json:"to_next_level"`
	Percent        int   `json:"percent"`
	Balance        int   `json:"balance"`
	Purse          Purse `json:"purse"`
}

type Character struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	XP        int    `json:"xp"`
	Balance   int    `json:"balance"`
	Owner     bool   `json:"owner"`
	Sheet     Sheet  `json:"sheet"`
}

type Reward struct {
	XP       int `json:"xp"`
	Currency int `json:"currency"`
}

type Completion struct {
	Task        Task      `json:"task"`
	Character   Character `json:"character"`
	Reward      Reward    `json:"reward"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	LeveledUp   bool      `json:"leveled_up"`
}

type Invitation struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	InvitedBy string `json:"invited_by"`
	Status    string `json:"status"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Key       string `json:"key"`
}

// TaskQuery filters ListTasks.
type TaskQuery struct {
	Status     string
	Search     string
	AcceptedBy string
	Mine       bool
	Package    string
	Limit      int
	Cursor     string
}

// PaginatedTasks wraps list responses with cursors.
type PaginatedTasks struct {
	Items      []Task `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) DevLogin(ctx context.Context, actorID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"actor_id": actorID}, &resp)
	return resp.Token, err
}

func (c *Client) CreateProject(ctx context.Context, title string, public bool) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", map[string]any{"title": title, "public": public}, &resp)
	return resp, err
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v0/projects", nil, &resp)
	return resp, err
}

func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, projectPath(projectID, ""), nil, &resp)
	return resp, err
}

// UpdateProject changes the title and/or visibility; nil leaves a field as is.
func (c *Client) UpdateProject(ctx context.Context, projectID string, title *string, public *bool) (Project, error) {
	body := map[string]any{}
	if title != nil {
		body["title"] = *title
	}
	if public != nil {
		body["public"] = *public
	}
	var resp Project
	err := c.do(ctx, http.MethodPatch, projectPath(projectID, ""), body, &resp)
	return resp, err
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, projectPath(projectID, ""), nil, nil)
}

// Players returns the project's characters, owner first.
func (c *Client) Players(ctx context.Context, projectID string) ([]Character, error) {
	var resp []Character
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "players"), nil, &resp)
	return resp, err
}

func (c *Client) Invite(ctx context.Context, projectID, userID string) (Invitation, error) {
	var resp Invitation
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "invitations"), map[string]any{"user_id": userID}, &resp)
	return resp, err
}

// MyInvitations lists invitations for the caller; status may be empty.
func (c *Client) MyInvitations(ctx context.Context, status string) ([]Invitation, error) {
	endpoint := "v0/me/invitations"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Invitation
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ProjectInvitations lists invitations sent from a project; owner only.
func (c *Client) ProjectInvitations(ctx context.Context, projectID, status string) ([]Invitation, error) {
	endpoint := projectPath(projectID, "invitations")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Invitation
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) AcceptInvitation(ctx context.Context, id string) (Character, error) {
	var resp Character
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/invitations/%s/accept", url.PathEscape(id)), nil, &resp)
	return resp, err
}

func (c *Client) RejectInvitation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("v0/invitations/%s/reject", url.PathEscape(id)), nil, nil)
}

func (c *Client) CreateTask(ctx context.Context, projectID string, task NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "tasks"), task, &resp)
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context, projectID string, q TaskQuery) (PaginatedTasks, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.AcceptedBy != "" {
		params.Set("accepted_by", q.AcceptedBy)
	}
	if q.Mine {
		params.Set("mine", "true")
	}
	if q.Package != "" {
		params.Set("package", q.Package)
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	endpoint := projectPath(projectID, "tasks")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp PaginatedTasks
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, taskPath(id, ""), nil, &resp)
	return resp, err
}

func (c *Client) EditTask(ctx context.Context, id string, edit TaskEdit) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, taskPath(id, ""), edit, &resp)
	return resp, err
}

func (c *Client) SetObjectives(ctx context.Context, id string, objectives []Objective) (Task, error) {
	if objectives == nil {
		objectives = []Objective{}
	}
	var resp Task
	err := c.do(ctx, http.MethodPut, taskPath(id, "objectives"), map[string]any{"objectives": objectives}, &resp)
	return resp, err
}

func (c *Client) ToggleObjective(ctx context.Context, id string, index int) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, fmt.Sprintf("objectives/%d/toggle", index)), nil, &resp)
	return resp, err
}

func (c *Client) AcceptTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "accept"), nil, &resp)
	return resp, err
}

func (c *Client) AbandonTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "abandon"), nil, &resp)
	return resp, err
}

func (c *Client) CompleteTask(ctx context.Context, id string) (Completion, error) {
	var resp Completion
	err := c.do(ctx, http.MethodPost, taskPath(id, "complete"), nil, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id, ""), nil, nil)
}

// MyCharacter returns the caller's character sheet in a project.
func (c *Client) MyCharacter(ctx context.Context, projectID string) (Character, error) {
	var resp Character
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "character"), nil, &resp)
	return resp, err
}

func (c *Client) MyCharacters(ctx context.Context) ([]Character, error) {
	var resp []Character
	err := c.do(ctx, http.MethodGet, "v0/me/characters", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, projectID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, projectID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, projectID string, limit int, cursor string) (PaginatedEvents, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	endpoint := projectPath(projectID, "events")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateAPIKey mints a key; the plaintext is only present in this response.
func (c *Client) CreateAPIKey(ctx context.Context, name string) (APIKey, error) {
	var resp APIKey
	err := c.do(ctx, http.MethodPost, "v0/me/api-keys", map[string]any{"name": name}, &resp)
	return resp, err
}

func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var resp []APIKey
	err := c.do(ctx, http.MethodGet, "v0/me/api-keys", nil, &resp)
	return resp, err
}

func (c *Client) RevokeAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/me/api-keys/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func projectPath(projectID, p string) string {
	base := "v0/projects/" + url.PathEscape(projectID)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func taskPath(taskID, p string) string {
	base := "v0/tasks/" + url.PathEscape(taskID)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
