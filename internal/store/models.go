// Package store defines the persistence interface and shared models for workspaces,
// agents, tasks, conversations, messages, activities, notifications and documents.
package store

import (
	"time"

	"github.com/ankittk/missionctl/pkg/models"
)

// Records are the API models; the store persists them field for field.
type (
	Workspace    = models.Workspace
	Agent        = models.Agent
	Task         = models.Task
	Conversation = models.Conversation
	Message      = models.Message
	Activity     = models.Activity
	Notification = models.Notification
	Document     = models.Document
)

// WorkspacePatch is a partial workspace update. Nil fields are left unchanged.
type WorkspacePatch struct {
	Name        *string
	Description *string
	UpdatedAt   time.Time
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Status      *string
	AssigneeIDs *[]string
	UpdatedAt   time.Time
}

// AgentPatch is a partial agent update. Nil fields are left unchanged.
type AgentPatch struct {
	Status        *string
	LastHeartbeat *time.Time
	UpdatedAt     time.Time
}

// TaskFilter narrows ListTasks. Empty fields do not filter. Results are oldest first.
type TaskFilter struct {
	WorkspaceID string
	Status      string
	AssigneeID  string
	Limit       int
}

// ActivityFilter narrows ListActivities. Results are newest first.
type ActivityFilter struct {
	WorkspaceID string
	Type        string
	TaskID      string
	Limit       int
}

// NotificationFilter narrows ListNotifications. Results are in insertion order.
type NotificationFilter struct {
	AgentID         string
	UndeliveredOnly bool
}

// DocumentFilter narrows ListDocuments. Results are oldest first.
type DocumentFilter struct {
	WorkspaceID string
	TaskID      string
}
