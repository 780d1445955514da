package workflow

import (
	"context"
	"strings"
	"time"

	mcotel "github.com/ankittk/missionctl/internal/otel"
	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

// NewTask is the input to CreateTask.
type NewTask struct {
	WorkspaceID string
	Title       string
	Description *string
	Priority    string // defaults to normal
	AssigneeIDs []string
	DueDate     *time.Time
}

// CreateTask creates a task in the profile's initial status, its task
// conversation (rich profile) and one task_created activity. Initial assignees
// are recorded but not notified.
func (e *Engine) CreateTask(ctx context.Context, in NewTask) (string, error) {
	title := in.Title
	if strings.TrimSpace(title) == "" {
		return "", invalidf("task title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.Contains(models.Priorities, priority) {
		return "", invalidf("priority %q not in %v", priority, models.Priorities)
	}
	p := e.profile()
	assignees := uniqueIDs(in.AssigneeIDs)
	if err := p.checkAssignees(len(assignees)); err != nil {
		return "", err
	}

	now := e.now()
	id := store.NewID()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		ws, err := st.GetWorkspace(ctx, in.WorkspaceID)
		if err != nil {
			return err
		}
		if ws == nil {
			return e.notFound("workspace", in.WorkspaceID)
		}
		if _, err := loadAssignees(ctx, st, in.WorkspaceID, assignees); err != nil {
			return err
		}
		if _, err := st.InsertTask(ctx, store.Task{
			ID:          id,
			WorkspaceID: in.WorkspaceID,
			Title:       title,
			Description: in.Description,
			Status:      p.InitialStatus,
			Priority:    priority,
			AssigneeIDs: assignees,
			DueDate:     in.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		if p.ConversationOnCreate {
			if _, err := st.InsertConversation(ctx, store.Conversation{
				WorkspaceID: in.WorkspaceID,
				Type:        models.ConversationTask,
				TaskID:      &id,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &in.WorkspaceID,
			TaskID:      &id,
			Type:        models.ActivityTaskCreated,
			Message:     "Task created: " + title,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return "", err
	}
	if ev == nil {
		return "", nil
	}
	mcotel.RecordTaskOp(ctx, "create", in.WorkspaceID, p.InitialStatus)
	e.committed(ctx, ev)
	return id, nil
}

// GetTask returns the task or ErrNotFound.
func (e *Engine) GetTask(ctx context.Context, id string) (*store.Task, error) {
	t, err := e.Store.GetTask(ctx, id)
	if err != nil || t != nil {
		return t, err
	}
	return nil, e.notFound("task", id)
}

// ListTasks returns tasks matching f in creation order.
func (e *Engine) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	if f.Status != "" && !e.profile().validTaskStatus(f.Status) {
		return nil, invalidf("task status %q not in %v", f.Status, e.profile().TaskStatuses)
	}
	return e.Store.ListTasks(ctx, f)
}

// UpdateTaskStatus moves a task to status. Any transition between valid statuses
// is allowed, including reopening a done task.
func (e *Engine) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	p := e.profile()
	if !p.validTaskStatus(status) {
		return invalidf("task status %q not in %v", status, p.TaskStatuses)
	}
	now := e.now()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		t, err := st.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return e.notFound("task", taskID)
		}
		if err := st.PatchTask(ctx, taskID, store.TaskPatch{Status: &status, UpdatedAt: now}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &t.WorkspaceID,
			TaskID:      &t.ID,
			Type:        models.ActivityTaskStatusChanged,
			Message:     "Task status changed to: " + status,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return err
	}
	if ev != nil {
		mcotel.RecordTaskOp(ctx, "status", ev.WorkspaceID, status)
	}
	e.committed(ctx, ev)
	return nil
}

// ApproveTaskPlanning closes the planning phase of a task: planning moves to inbox
// with one task_status_changed activity. Tasks in any other status, and profiles
// without a planning status, are rejected with ErrInvalid.
func (e *Engine) ApproveTaskPlanning(ctx context.Context, taskID string) error {
	p := e.profile()
	if !p.validTaskStatus(models.StatusPlanning) {
		return invalidf("profile %s has no planning phase", p.Name)
	}
	now := e.now()
	inbox := models.StatusInbox
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		t, err := st.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return e.notFound("task", taskID)
		}
		if t.Status != models.StatusPlanning {
			return invalidf("task %q is %s, not in planning", taskID, t.Status)
		}
		if err := st.PatchTask(ctx, taskID, store.TaskPatch{Status: &inbox, UpdatedAt: now}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &t.WorkspaceID,
			TaskID:      &t.ID,
			Type:        models.ActivityTaskStatusChanged,
			Message:     "Planning complete, task moved to inbox",
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return err
	}
	if ev != nil {
		mcotel.RecordTaskOp(ctx, "approve_planning", ev.WorkspaceID, inbox)
	}
	e.committed(ctx, ev)
	return nil
}

// AssignTask replaces the task's assignees, forces status assigned, logs one
// task_assigned activity and notifies every agent not previously assigned.
func (e *Engine) AssignTask(ctx context.Context, taskID string, agentIDs []string) error {
	ids := uniqueIDs(agentIDs)
	if len(ids) == 0 {
		return invalidf("at least one agent id is required")
	}
	p := e.profile()
	if err := p.checkAssignees(len(ids)); err != nil {
		return err
	}
	now := e.now()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		t, err := st.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return e.notFound("task", taskID)
		}
		agents, err := loadAssignees(ctx, st, t.WorkspaceID, ids)
		if err != nil {
			return err
		}
		if err := st.PatchTask(ctx, taskID, store.TaskPatch{
			Status:      ptr(models.StatusAssigned),
			AssigneeIDs: &ids,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		names := make([]string, len(agents))
		for i, ag := range agents {
			names[i] = ag.Name
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &t.WorkspaceID,
			AgentID:     &ids[0],
			TaskID:      &t.ID,
			Type:        models.ActivityTaskAssigned,
			Message:     "Task assigned to " + strings.Join(names, ", "),
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		previous := make(map[string]bool, len(t.AssigneeIDs))
		for _, id := range t.AssigneeIDs {
			previous[id] = true
		}
		var notes []store.Notification
		for _, id := range ids {
			if previous[id] {
				continue
			}
			n := store.Notification{
				ID:          store.NewID(),
				WorkspaceID: t.WorkspaceID,
				AgentID:     id,
				Content:     "You've been assigned a task: " + t.Title,
				TaskID:      &t.ID,
				CreatedAt:   now,
			}
			if _, err := st.InsertNotification(ctx, n); err != nil {
				return err
			}
			notes = append(notes, n)
		}
		ev = eventFor(a, notes)
		return nil
	})
	if err != nil {
		return err
	}
	if ev != nil {
		mcotel.RecordTaskOp(ctx, "assign", ev.WorkspaceID, models.StatusAssigned)
		mcotel.RecordNotifications(ctx, "assignment", len(ev.Notifications))
	}
	e.committed(ctx, ev)
	return nil
}

// GetTaskConversation returns the conversation of a task. In the simple profile a
// task has none until its first message, which is reported as ErrNotFound.
func (e *Engine) GetTaskConversation(ctx context.Context, taskID string) (*store.Conversation, error) {
	t, err := e.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, e.notFound("task", taskID)
	}
	c, err := e.Store.GetConversationByTask(ctx, taskID)
	if err != nil || c != nil {
		return c, err
	}
	return nil, e.notFound("conversation for task", taskID)
}

// loadAssignees returns the agents for ids, all of which must belong to workspaceID.
func loadAssignees(ctx context.Context, st store.Store, workspaceID string, ids []string) ([]store.Agent, error) {
	out := make([]store.Agent, 0, len(ids))
	for _, id := range ids {
		ag, err := st.GetAgent(ctx, id)
		if err != nil {
			return nil, err
		}
		if ag == nil || ag.WorkspaceID != workspaceID {
			return nil, invalidf("agent %q is not in workspace %q", id, workspaceID)
		}
		out = append(out, *ag)
	}
	return out, nil
}

// uniqueIDs drops empty and repeated ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
