// Package models provides shared types for the missionctl HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Workspace is the tenancy boundary that owns agents, tasks and their artifacts.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AgentCount  int       `json:"agent_count,omitempty"`
	TaskCount   int       `json:"task_count,omitempty"`
}

// Agent is a cooperating actor that can be assigned tasks and receive notifications.
type Agent struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspace_id"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	Description   *string    `json:"description,omitempty"`
	AvatarEmoji   string     `json:"avatar_emoji"`
	Status        string     `json:"status"`
	IsMaster      bool       `json:"is_master"`
	SessionKey    string     `json:"session_key"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Task is a unit of work tracked through the lifecycle statuses.
type Task struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssigneeIDs []string   `json:"assignee_ids"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Conversation is a message thread; task conversations are 1:1 with their task.
type Conversation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Type        string    `json:"type"`
	TaskID      *string   `json:"task_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is an immutable entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	TaskID         *string   `json:"task_id,omitempty"`
	SenderAgentID  *string   `json:"sender_agent_id,omitempty"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	Attachments    []string  `json:"attachments,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Activity is an append-only audit entry describing one state change.
type Activity struct {
	ID          string    `json:"id"`
	WorkspaceID *string   `json:"workspace_id,omitempty"`
	Type        string    `json:"type"`
	AgentID     *string   `json:"agent_id,omitempty"`
	TaskID      *string   `json:"task_id,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is a per-agent, delivery-tracked message from an assignment or mention.
type Notification struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	AgentID     string    `json:"agent_id"`
	Content     string    `json:"content"`
	TaskID      *string   `json:"task_id,omitempty"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is a deliverable or research note attached to a workspace or task.
type Document struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	TaskID      *string   `json:"task_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is one substring hit returned by /workspaces/{id}/search.
type SearchResult struct {
	Kind    string `json:"kind"` // "task" or "activity"
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Config is the /config API response.
type Config struct {
	Home        string `json:"home,omitempty"`
	Profile     string `json:"profile"`
	BootstrapID string `json:"bootstrap_id,omitempty"`
}

// Bootstrap is the /bootstrap API response.
type Bootstrap struct {
	Config           Config      `json:"config"`
	Workspaces       []Workspace `json:"workspaces"`
	InitialWorkspace *string     `json:"initial_workspace,omitempty"`
	Tasks            []Task      `json:"tasks,omitempty"`
	Agents           []Agent     `json:"agents,omitempty"`
	Activities       []Activity  `json:"activities,omitempty"`
}
