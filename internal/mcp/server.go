// Package mcp serves an agent's view of the engine as MCP tools, so an AI agent
// can read its tasks, talk in task threads and acknowledge notifications.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps a Toolkit and exposes it as MCP tools.
type Server struct {
	server  *gomcp.Server
	toolkit *Toolkit
}

// NewServer creates an MCP server acting as agentID.
func NewServer(eng *workflow.Engine, agentID, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{toolkit: &Toolkit{Engine: eng, AgentID: agentID}}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "missionctl", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	AssigneeIDs []string `json:"assignee_ids"`
	DueDate     string   `json:"due_date,omitempty"`
	Updated     string   `json:"updated"`
}

type listTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter by task status"`
	Mine   bool   `json:"mine,omitempty" jsonschema:"only tasks assigned to you"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of tasks"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"the task id"`
}

type updateTaskStatusInput struct {
	TaskID string `json:"task_id" jsonschema:"the task id"`
	Status string `json:"status" jsonschema:"the new status"`
}

type okOutput struct {
	Message string `json:"message"`
}

type postMessageInput struct {
	Ref     string `json:"ref" jsonschema:"task id or conversation id"`
	Content string `json:"content" jsonschema:"message text; @Name mentions notify that agent"`
}

type postMessageOutput struct {
	MessageID string `json:"message_id"`
}

type listMessagesInput struct {
	Ref string `json:"ref" jsonschema:"task id or conversation id"`
}

type messageOutput struct {
	ID            string `json:"id"`
	SenderAgentID string `json:"sender_agent_id,omitempty"`
	Content       string `json:"content"`
	Created       string `json:"created"`
}

type listMessagesOutput struct {
	Messages []messageOutput `json:"messages"`
	Count    int             `json:"count"`
}

type listNotificationsInput struct {
	All bool `json:"all,omitempty" jsonschema:"include delivered notifications"`
}

type notificationOutput struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	TaskID    string `json:"task_id,omitempty"`
	Delivered bool   `json:"delivered"`
	Created   string `json:"created"`
}

type listNotificationsOutput struct {
	Notifications []notificationOutput `json:"notifications"`
	Count         int                  `json:"count"`
}

type notificationIDInput struct {
	NotificationID string `json:"notification_id" jsonschema:"the notification id"`
}

type heartbeatInput struct{}

type listActivitiesInput struct {
	Type  string `json:"type,omitempty" jsonschema:"filter by activity type"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 100)"`
}

type activityOutput struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	AgentID string `json:"agent_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Created string `json:"created"`
}

type listActivitiesOutput struct {
	Activities []activityOutput `json:"activities"`
	Count      int              `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks in your workspace, optionally filtered by status or to your own assignments.",
	}, s.handleListTasks)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get one task by id.",
	}, s.handleGetTask)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_status",
		Description: "Move a task to a new status.",
	}, s.handleUpdateTaskStatus)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "post_message",
		Description: "Post a message to a task thread or conversation as yourself.",
	}, s.handlePostMessage)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_messages",
		Description: "List the messages of a task thread or conversation, oldest first.",
	}, s.handleListMessages)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_notifications",
		Description: "List your undelivered notifications (or all of them).",
	}, s.handleListNotifications)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "mark_notification_delivered",
		Description: "Acknowledge one of your notifications.",
	}, s.handleMarkDelivered)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "heartbeat",
		Description: "Check in; marks you as working and records the time.",
	}, s.handleHeartbeat)
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_activities",
		Description: "List your workspace's activity feed, newest first.",
	}, s.handleListActivities)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	tasks, err := s.toolkit.ListTasks(ctx, input.Status, input.Mine, input.Limit)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}
	out := listTasksOutput{Tasks: make([]taskOutput, len(tasks)), Count: len(tasks)}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	t, err := s.toolkit.GetTask(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*t), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, okOutput, error) {
	if input.TaskID == "" || input.Status == "" {
		return errorResult("task_id and status are required"), okOutput{}, nil
	}
	if err := s.toolkit.UpdateTaskStatus(ctx, input.TaskID, input.Status); err != nil {
		return errorResult(fmt.Sprintf("updating task %s status: %s", input.TaskID, err)), okOutput{}, nil
	}
	return nil, okOutput{Message: fmt.Sprintf("task %s status updated to %s", input.TaskID, input.Status)}, nil
}

func (s *Server) handlePostMessage(ctx context.Context, _ *gomcp.CallToolRequest, input postMessageInput) (*gomcp.CallToolResult, postMessageOutput, error) {
	id, err := s.toolkit.PostMessage(ctx, input.Ref, input.Content)
	if err != nil {
		return errorResult(fmt.Sprintf("posting message: %s", err)), postMessageOutput{}, nil
	}
	return nil, postMessageOutput{MessageID: id}, nil
}

func (s *Server) handleListMessages(ctx context.Context, _ *gomcp.CallToolRequest, input listMessagesInput) (*gomcp.CallToolResult, listMessagesOutput, error) {
	msgs, err := s.toolkit.ListMessages(ctx, input.Ref)
	if err != nil {
		return errorResult(fmt.Sprintf("listing messages: %s", err)), listMessagesOutput{}, nil
	}
	out := listMessagesOutput{Messages: make([]messageOutput, len(msgs)), Count: len(msgs)}
	for i, m := range msgs {
		out.Messages[i] = messageOutput{
			ID:            m.ID,
			SenderAgentID: deref(m.SenderAgentID),
			Content:       m.Content,
			Created:       m.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

func (s *Server) handleListNotifications(ctx context.Context, _ *gomcp.CallToolRequest, input listNotificationsInput) (*gomcp.CallToolResult, listNotificationsOutput, error) {
	notes, err := s.toolkit.Notifications(ctx, input.All)
	if err != nil {
		return errorResult(fmt.Sprintf("listing notifications: %s", err)), listNotificationsOutput{}, nil
	}
	out := listNotificationsOutput{Notifications: make([]notificationOutput, len(notes)), Count: len(notes)}
	for i, n := range notes {
		out.Notifications[i] = notificationOutput{
			ID:        n.ID,
			Content:   n.Content,
			TaskID:    deref(n.TaskID),
			Delivered: n.Delivered,
			Created:   n.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

func (s *Server) handleMarkDelivered(ctx context.Context, _ *gomcp.CallToolRequest, input notificationIDInput) (*gomcp.CallToolResult, okOutput, error) {
	if err := s.toolkit.MarkDelivered(ctx, input.NotificationID); err != nil {
		return errorResult(fmt.Sprintf("marking notification %s: %s", input.NotificationID, err)), okOutput{}, nil
	}
	return nil, okOutput{Message: "notification " + input.NotificationID + " delivered"}, nil
}

func (s *Server) handleHeartbeat(ctx context.Context, _ *gomcp.CallToolRequest, _ heartbeatInput) (*gomcp.CallToolResult, okOutput, error) {
	if err := s.toolkit.Heartbeat(ctx); err != nil {
		return errorResult(fmt.Sprintf("heartbeat: %s", err)), okOutput{}, nil
	}
	return nil, okOutput{Message: "checked in"}, nil
}

func (s *Server) handleListActivities(ctx context.Context, _ *gomcp.CallToolRequest, input listActivitiesInput) (*gomcp.CallToolResult, listActivitiesOutput, error) {
	acts, err := s.toolkit.Activities(ctx, input.Type, input.Limit)
	if err != nil {
		return errorResult(fmt.Sprintf("listing activities: %s", err)), listActivitiesOutput{}, nil
	}
	out := listActivitiesOutput{Activities: make([]activityOutput, len(acts)), Count: len(acts)}
	for i, a := range acts {
		out.Activities[i] = activityOutput{
			ID:      a.ID,
			Type:    a.Type,
			Message: a.Message,
			AgentID: deref(a.AgentID),
			TaskID:  deref(a.TaskID),
			Created: a.CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t store.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		Title:       t.Title,
		Description: deref(t.Description),
		Status:      t.Status,
		Priority:    t.Priority,
		AssigneeIDs: t.AssigneeIDs,
		Updated:     t.UpdatedAt.Format(time.RFC3339),
	}
	if out.AssigneeIDs == nil {
		out.AssigneeIDs = []string{}
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.Format(time.RFC3339)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
