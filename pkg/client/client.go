// Package client provides a Go SDK for the missionctl HTTP API.
package client

import (
	"bufio"
	"bytes"
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

	"github.com/ankittk/missionctl/pkg/models"
)

// Client calls the missionctl HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3548"
	APIKey     string       // optional; sent as X-API-Key when the daemon has a password
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:3548").
// APIKey is optional; when set, requests carry it in the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}
}

// APIError is a non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// create POSTs body and returns the {"id": ...} of the new record.
func (c *Client) create(ctx context.Context, path string, body any) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodPost, path, body, &out)
	return out.ID, err
}

func withQuery(path string, q url.Values) string {
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Config returns the /config response.
func (c *Client) Config(ctx context.Context) (*models.Config, error) {
	var out models.Config
	err := c.doJSON(ctx, http.MethodGet, "/config", nil, &out)
	return &out, err
}

// Bootstrap returns the full /bootstrap payload.
func (c *Client) Bootstrap(ctx context.Context) (*models.Bootstrap, error) {
	var out models.Bootstrap
	err := c.doJSON(ctx, http.MethodGet, "/bootstrap", nil, &out)
	return &out, err
}

// --- Workspaces ---

func (c *Client) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	var out []models.Workspace
	err := c.doJSON(ctx, http.MethodGet, "/workspaces", nil, &out)
	return out, err
}

func (c *Client) CreateWorkspace(ctx context.Context, name string, description *string) (string, error) {
	return c.create(ctx, "/workspaces", map[string]any{"name": name, "description": description})
}

func (c *Client) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var out models.Workspace
	err := c.doJSON(ctx, http.MethodGet, "/workspaces/"+url.PathEscape(id), nil, &out)
	return &out, err
}

// WorkspaceUpdate is the body of UpdateWorkspace; nil fields are left unchanged.
type WorkspaceUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateWorkspace renames or re-describes a workspace and returns it as stored.
func (c *Client) UpdateWorkspace(ctx context.Context, id string, in WorkspaceUpdate) (*models.Workspace, error) {
	var out models.Workspace
	err := c.doJSON(ctx, http.MethodPatch, "/workspaces/"+url.PathEscape(id), in, &out)
	return &out, err
}

// DeleteWorkspace removes an empty workspace. The default workspace and
// workspaces that still hold tasks or agents are refused with 400.
func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/workspaces/"+url.PathEscape(id), nil, nil)
}

// --- Agents ---

// NewAgent is the body of CreateAgent. Name and Role are required.
type NewAgent struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Description *string `json:"description,omitempty"`
	AvatarEmoji string  `json:"avatar_emoji,omitempty"`
	IsMaster    bool    `json:"is_master,omitempty"`
	SessionKey  string  `json:"session_key,omitempty"`
}

func (c *Client) CreateAgent(ctx context.Context, workspaceID string, in NewAgent) (string, error) {
	return c.create(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/agents", in)
}

func (c *Client) ListAgents(ctx context.Context, workspaceID string) ([]models.Agent, error) {
	var out []models.Agent
	err := c.doJSON(ctx, http.MethodGet, "/workspaces/"+url.PathEscape(workspaceID)+"/agents", nil, &out)
	return out, err
}

func (c *Client) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var out models.Agent
	err := c.doJSON(ctx, http.MethodGet, "/agents/"+url.PathEscape(id), nil, &out)
	return &out, err
}

func (c *Client) UpdateAgentStatus(ctx context.Context, id, status string) error {
	return c.doJSON(ctx, http.MethodPatch, "/agents/"+url.PathEscape(id), map[string]string{"status": status}, nil)
}

// Heartbeat marks the agent alive.
func (c *Client) Heartbeat(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/agents/"+url.PathEscape(id)+"/heartbeat", nil, nil)
}

// ListNotifications returns the agent's undelivered notifications, or all of them.
func (c *Client) ListNotifications(ctx context.Context, agentID string, all bool) ([]models.Notification, error) {
	q := url.Values{}
	if all {
		q.Set("all", "true")
	}
	var out []models.Notification
	err := c.doJSON(ctx, http.MethodGet, withQuery("/agents/"+url.PathEscape(agentID)+"/notifications", q), nil, &out)
	return out, err
}

// MarkDelivered acknowledges a notification. Repeating it is harmless.
func (c *Client) MarkDelivered(ctx context.Context, notificationID string) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/"+url.PathEscape(notificationID)+"/delivered", nil, nil)
}

// --- Tasks ---

// NewTask is the body of CreateTask. Title is required.
type NewTask struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeIDs []string   `json:"assignee_ids,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, workspaceID string, in NewTask) (string, error) {
	return c.create(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/tasks", in)
}

// TaskQuery filters ListTasks. Zero values do not filter.
type TaskQuery struct {
	Status     string
	AssigneeID string
	Limit      int
}

func (c *Client) ListTasks(ctx context.Context, workspaceID string, tq TaskQuery) ([]models.Task, error) {
	q := url.Values{}
	if tq.Status != "" {
		q.Set("status", tq.Status)
	}
	if tq.AssigneeID != "" {
		q.Set("assignee_id", tq.AssigneeID)
	}
	if tq.Limit > 0 {
		q.Set("limit", strconv.Itoa(tq.Limit))
	}
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, withQuery("/workspaces/"+url.PathEscape(workspaceID)+"/tasks", q), nil, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &out)
	return &out, err
}

// UpdateTaskStatus moves the task and returns it as stored afterwards.
func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), map[string]string{"status": status}, &out)
	return &out, err
}

// AssignTask replaces the assignees; newly assigned agents are notified.
func (c *Client) AssignTask(ctx context.Context, id string, agentIDs ...string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/assign", map[string]any{"agent_ids": agentIDs}, &out)
	return &out, err
}

// ApproveTaskPlanning moves a task out of planning into the inbox.
func (c *Client) ApproveTaskPlanning(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/planning/approve", nil, &out)
	return &out, err
}

func (c *Client) GetTaskConversation(ctx context.Context, taskID string) (*models.Conversation, error) {
	var out models.Conversation
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/conversation", nil, &out)
	return &out, err
}

// --- Messages ---

// PostMessage appends to a conversation; ref is a conversation id or a task id.
// A nil sender posts a system message.
func (c *Client) PostMessage(ctx context.Context, ref string, sender *string, content string, attachments ...string) (string, error) {
	return c.create(ctx, "/conversations/"+url.PathEscape(ref)+"/messages", map[string]any{
		"sender_agent_id": sender,
		"content":         content,
		"attachments":     attachments,
	})
}

func (c *Client) ListMessages(ctx context.Context, ref string) ([]models.Message, error) {
	var out []models.Message
	err := c.doJSON(ctx, http.MethodGet, "/conversations/"+url.PathEscape(ref)+"/messages", nil, &out)
	return out, err
}

// --- Activities, documents, search ---

// ActivityQuery filters ListActivities. Limit 0 means the server default (100).
type ActivityQuery struct {
	WorkspaceID string
	Type        string
	TaskID      string
	Limit       int
}

func (c *Client) ListActivities(ctx context.Context, aq ActivityQuery) ([]models.Activity, error) {
	q := url.Values{}
	if aq.WorkspaceID != "" {
		q.Set("workspace_id", aq.WorkspaceID)
	}
	if aq.Type != "" {
		q.Set("type", aq.Type)
	}
	if aq.TaskID != "" {
		q.Set("task_id", aq.TaskID)
	}
	if aq.Limit > 0 {
		q.Set("limit", strconv.Itoa(aq.Limit))
	}
	var out []models.Activity
	err := c.doJSON(ctx, http.MethodGet, withQuery("/activities", q), nil, &out)
	return out, err
}

// NewDocument is the body of CreateDocument. CreatedBy and Title are required.
type NewDocument struct {
	TaskID    *string `json:"task_id,omitempty"`
	CreatedBy string  `json:"created_by"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Type      string  `json:"type,omitempty"`
}

func (c *Client) CreateDocument(ctx context.Context, workspaceID string, in NewDocument) (string, error) {
	return c.create(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/documents", in)
}

func (c *Client) ListDocuments(ctx context.Context, workspaceID, taskID string) ([]models.Document, error) {
	q := url.Values{}
	if taskID != "" {
		q.Set("task_id", taskID)
	}
	var out []models.Document
	err := c.doJSON(ctx, http.MethodGet, withQuery("/workspaces/"+url.PathEscape(workspaceID)+"/documents", q), nil, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, workspaceID, query string, limit int) ([]models.SearchResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.SearchResult
	err := c.doJSON(ctx, http.MethodGet, withQuery("/workspaces/"+url.PathEscape(workspaceID)+"/search", q), nil, &out)
	return out, err
}

// --- Event stream ---

// Event is one message from /stream: a committed mutation with its activity
// and any notifications it created. The first event of a stream is "connected".
type Event struct {
	Type          string                `json:"type"`
	WorkspaceID   string                `json:"workspace_id,omitempty"`
	TaskID        string                `json:"task_id,omitempty"`
	AgentID       string                `json:"agent_id,omitempty"`
	Activity      *models.Activity      `json:"activity,omitempty"`
	Notifications []models.Notification `json:"notifications,omitempty"`
	At            time.Time             `json:"at"`
}

// Stream follows the server-sent event stream (optionally one workspace) and
// calls fn for each event until ctx is cancelled, the server closes the stream
// or fn returns an error.
func (c *Client) Stream(ctx context.Context, workspaceID string, fn func(Event) error) error {
	q := url.Values{}
	if workspaceID != "" {
		q.Set("workspace_id", workspaceID)
	}
	path := withQuery("/stream", q)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue // keepalive comments and blank separators
		}
		var ev Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("stream: decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
