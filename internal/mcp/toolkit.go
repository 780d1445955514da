package mcp

import (
	"context"
	"fmt"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
)

// Toolkit exposes validated engine operations for one agent. The agent's identity
// is baked into every call: messages are always sent as AgentID, and tasks,
// conversations and notifications outside the agent's workspace look missing.
type Toolkit struct {
	Engine  *workflow.Engine
	AgentID string
}

func (t *Toolkit) agent(ctx context.Context) (*store.Agent, error) {
	a, err := t.Engine.Store.GetAgent(ctx, t.AgentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("agent %q: %w", t.AgentID, workflow.ErrNotFound)
	}
	return a, nil
}

// ListTasks returns tasks in the agent's workspace, optionally filtered by status
// and to the agent's own assignments.
func (t *Toolkit) ListTasks(ctx context.Context, status string, mine bool, limit int) ([]store.Task, error) {
	a, err := t.agent(ctx)
	if err != nil {
		return nil, err
	}
	f := store.TaskFilter{WorkspaceID: a.WorkspaceID, Status: status, Limit: limit}
	if mine {
		f.AssigneeID = a.ID
	}
	return t.Engine.ListTasks(ctx, f)
}

// GetTask returns a task in the agent's workspace.
func (t *Toolkit) GetTask(ctx context.Context, id string) (*store.Task, error) {
	a, err := t.agent(ctx)
	if err != nil {
		return nil, err
	}
	task, err := t.Engine.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil || task.WorkspaceID != a.WorkspaceID {
		return nil, fmt.Errorf("task %q: %w", id, workflow.ErrNotFound)
	}
	return task, nil
}

// UpdateTaskStatus moves a task in the agent's workspace.
func (t *Toolkit) UpdateTaskStatus(ctx context.Context, id, status string) error {
	if _, err := t.GetTask(ctx, id); err != nil {
		return err
	}
	return t.Engine.UpdateTaskStatus(ctx, id, status)
}

// PostMessage posts content as this agent to a conversation or task thread.
func (t *Toolkit) PostMessage(ctx context.Context, ref, content string) (string, error) {
	a, err := t.agent(ctx)
	if err != nil {
		return "", err
	}
	if err := t.checkRef(ctx, a.WorkspaceID, ref); err != nil {
		return "", err
	}
	return t.Engine.PostMessage(ctx, workflow.NewMessage{Ref: ref, SenderAgentID: &a.ID, Content: content})
}

// ListMessages returns a thread's messages oldest first.
func (t *Toolkit) ListMessages(ctx context.Context, ref string) ([]store.Message, error) {
	a, err := t.agent(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.checkRef(ctx, a.WorkspaceID, ref); err != nil {
		return nil, err
	}
	return t.Engine.ListMessages(ctx, ref)
}

// checkRef reports ErrNotFound unless ref is a task or conversation in workspaceID.
func (t *Toolkit) checkRef(ctx context.Context, workspaceID, ref string) error {
	task, err := t.Engine.Store.GetTask(ctx, ref)
	if err != nil {
		return err
	}
	if task != nil {
		if task.WorkspaceID == workspaceID {
			return nil
		}
	} else {
		conv, err := t.Engine.Store.GetConversation(ctx, ref)
		if err != nil {
			return err
		}
		if conv != nil && conv.WorkspaceID == workspaceID {
			return nil
		}
	}
	return fmt.Errorf("conversation or task %q: %w", ref, workflow.ErrNotFound)
}

// Notifications returns the agent's notifications; all includes delivered ones.
func (t *Toolkit) Notifications(ctx context.Context, all bool) ([]store.Notification, error) {
	if _, err := t.agent(ctx); err != nil {
		return nil, err
	}
	return t.Engine.ListNotifications(ctx, t.AgentID, all)
}

// MarkDelivered acknowledges one of the agent's own notifications. An unknown id
// is a no-op, as in the engine; another agent's notification is not found.
func (t *Toolkit) MarkDelivered(ctx context.Context, id string) error {
	n, err := t.Engine.Store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	if n.AgentID != t.AgentID {
		return fmt.Errorf("notification %q: %w", id, workflow.ErrNotFound)
	}
	return t.Engine.MarkDelivered(ctx, id)
}

// Heartbeat records that the agent checked in.
func (t *Toolkit) Heartbeat(ctx context.Context) error {
	return t.Engine.Heartbeat(ctx, t.AgentID)
}

// Activities returns the agent's workspace feed, newest first.
func (t *Toolkit) Activities(ctx context.Context, typ string, limit int) ([]store.Activity, error) {
	a, err := t.agent(ctx)
	if err != nil {
		return nil, err
	}
	return t.Engine.ListActivities(ctx, store.ActivityFilter{WorkspaceID: a.WorkspaceID, Type: typ, Limit: limit})
}
