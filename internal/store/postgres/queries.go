package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/jackc/pgx/v5"
)

const (
	agentColumns        = `id, workspace_id, name, role, description, avatar_emoji, status, is_master, session_key, last_heartbeat, created_at, updated_at`
	taskColumns         = `id, workspace_id, title, description, status, priority, assignee_ids, due_date, created_at, updated_at`
	conversationColumns = `id, workspace_id, type, task_id, created_at, updated_at`
	messageColumns      = `id, conversation_id, task_id, sender_agent_id, content, message_type, attachments, created_at`
	activityColumns     = `id, workspace_id, type, agent_id, task_id, message, created_at`
	notificationColumns = `id, workspace_id, agent_id, content, task_id, delivered, created_at`
	documentColumns     = `id, workspace_id, task_id, created_by, title, content, type, created_at`
)

func idOr(id string) string {
	if id == "" {
		return store.NewID()
	}
	return id
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := store.ToMillis(*t)
	return &ms
}

func timeFromPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := store.FromMillis(*ms)
	return &t
}

func nanosPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ns := store.ToNanos(*t)
	return &ns
}

func timeFromNanos(ns *int64) *time.Time {
	if ns == nil {
		return nil
	}
	t := store.FromNanos(*ns)
	return &t
}

// args builds a positional-argument list, handing out $n placeholders.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// --- Workspaces ---

const workspaceSelect = `
SELECT w.id, w.name, w.slug, w.description, w.created_at, w.updated_at,
  (SELECT COUNT(*) FROM agents a WHERE a.workspace_id = w.id),
  (SELECT COUNT(*) FROM tasks t WHERE t.workspace_id = w.id)
FROM workspaces w`

func (s *Store) InsertWorkspace(ctx context.Context, w store.Workspace) (string, error) {
	if w.Name == "" {
		return "", errors.New("workspace name required")
	}
	id := idOr(w.ID)
	slug := w.Slug
	if slug == "" {
		slug = id
	}
	_, err := s.q.Exec(ctx, `INSERT INTO workspaces(id, name, slug, description, created_at, updated_at) VALUES($1, $2, $3, $4, $5, $6)`,
		id, w.Name, slug, w.Description, store.ToMillis(w.CreatedAt), store.ToMillis(w.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (*store.Workspace, error) {
	return s.workspaceWhere(ctx, `w.id = $1`, id)
}

func (s *Store) GetWorkspaceBySlug(ctx context.Context, slug string) (*store.Workspace, error) {
	return s.workspaceWhere(ctx, `w.slug = $1`, slug)
}

func (s *Store) workspaceWhere(ctx context.Context, cond string, arg any) (*store.Workspace, error) {
	w, err := scanWorkspace(s.q.QueryRow(ctx, workspaceSelect+` WHERE `+cond, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *Store) PatchWorkspace(ctx context.Context, id string, p store.WorkspacePatch) error {
	var a args
	sets := []string{"updated_at = " + a.add(store.ToMillis(p.UpdatedAt))}
	if p.Name != nil {
		sets = append(sets, "name = "+a.add(*p.Name))
	}
	if p.Description != nil {
		sets = append(sets, "description = "+a.add(*p.Description))
	}
	q := `UPDATE workspaces SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + a.add(id)
	_, err := s.q.Exec(ctx, q, a...)
	return err
}

func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM documents WHERE workspace_id = $1`, id); err != nil {
		return err
	}
	_, err := s.q.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	return err
}

func (s *Store) ListWorkspaces(ctx context.Context) ([]store.Workspace, error) {
	rows, err := s.q.Query(ctx, workspaceSelect+` ORDER BY w.created_at ASC, w.seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWorkspace(r pgx.Row) (*store.Workspace, error) {
	var (
		w                    store.Workspace
		createdAt, updatedAt int64
		agents, tasks        int64
	)
	if err := r.Scan(&w.ID, &w.Name, &w.Slug, &w.Description, &createdAt, &updatedAt, &agents, &tasks); err != nil {
		return nil, err
	}
	w.CreatedAt = store.FromMillis(createdAt)
	w.UpdatedAt = store.FromMillis(updatedAt)
	w.AgentCount = int(agents)
	w.TaskCount = int(tasks)
	return &w, nil
}

// --- Agents ---

func (s *Store) InsertAgent(ctx context.Context, a store.Agent) (string, error) {
	if a.Name == "" {
		return "", errors.New("agent name required")
	}
	id := idOr(a.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO agents(`+agentColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, a.WorkspaceID, a.Name, a.Role, a.Description, a.AvatarEmoji, a.Status, a.IsMaster, a.SessionKey,
		millisPtr(a.LastHeartbeat), store.ToMillis(a.CreatedAt), store.ToMillis(a.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*store.Agent, error) {
	a, err := scanAgent(s.q.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *Store) ListAgents(ctx context.Context, workspaceID string) ([]store.Agent, error) {
	return s.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents WHERE workspace_id = $1 ORDER BY created_at ASC, seq ASC`, workspaceID)
}

func (s *Store) FindAgentsByName(ctx context.Context, workspaceID, name string) ([]store.Agent, error) {
	return s.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents WHERE workspace_id = $1 AND name = $2 ORDER BY created_at ASC, seq ASC`, workspaceID, name)
}

func (s *Store) queryAgents(ctx context.Context, q string, a ...any) ([]store.Agent, error) {
	rows, err := s.q.Query(ctx, q, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Agent
	for rows.Next() {
		ag, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ag)
	}
	return out, rows.Err()
}

func (s *Store) PatchAgent(ctx context.Context, id string, p store.AgentPatch) error {
	var a args
	sets := []string{"updated_at = " + a.add(store.ToMillis(p.UpdatedAt))}
	if p.Status != nil {
		sets = append(sets, "status = "+a.add(*p.Status))
	}
	if p.LastHeartbeat != nil {
		sets = append(sets, "last_heartbeat = "+a.add(store.ToMillis(*p.LastHeartbeat)))
	}
	q := `UPDATE agents SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + a.add(id)
	_, err := s.q.Exec(ctx, q, a...)
	return err
}

func scanAgent(r pgx.Row) (*store.Agent, error) {
	var (
		a                    store.Agent
		heartbeat            *int64
		createdAt, updatedAt int64
	)
	if err := r.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Role, &a.Description, &a.AvatarEmoji, &a.Status, &a.IsMaster,
		&a.SessionKey, &heartbeat, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.LastHeartbeat = timeFromPtr(heartbeat)
	a.CreatedAt = store.FromMillis(createdAt)
	a.UpdatedAt = store.FromMillis(updatedAt)
	return &a, nil
}

// --- Tasks ---

func (s *Store) InsertTask(ctx context.Context, t store.Task) (string, error) {
	if t.Title == "" {
		return "", errors.New("task title required")
	}
	id := idOr(t.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, t.WorkspaceID, t.Title, t.Description, t.Status, t.Priority, store.EncodeIDs(t.AssigneeIDs),
		nanosPtr(t.DueDate), store.ToMillis(t.CreatedAt), store.ToMillis(t.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*store.Task, error) {
	t, err := scanTask(s.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	var a args
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE TRUE`
	if f.WorkspaceID != "" {
		q += ` AND workspace_id = ` + a.add(f.WorkspaceID)
	}
	if f.Status != "" {
		q += ` AND status = ` + a.add(f.Status)
	}
	if f.AssigneeID != "" {
		q += ` AND assignee_ids @> jsonb_build_array(` + a.add(f.AssigneeID) + `::text)`
	}
	q += ` ORDER BY created_at ASC, seq ASC`
	if f.Limit > 0 {
		q += ` LIMIT ` + a.add(f.Limit)
	}
	rows, err := s.q.Query(ctx, q, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) PatchTask(ctx context.Context, id string, p store.TaskPatch) error {
	var a args
	sets := []string{"updated_at = " + a.add(store.ToMillis(p.UpdatedAt))}
	if p.Status != nil {
		sets = append(sets, "status = "+a.add(*p.Status))
	}
	if p.AssigneeIDs != nil {
		sets = append(sets, "assignee_ids = "+a.add(store.EncodeIDs(*p.AssigneeIDs))+"::jsonb")
	}
	q := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + a.add(id)
	_, err := s.q.Exec(ctx, q, a...)
	return err
}

func scanTask(r pgx.Row) (*store.Task, error) {
	var (
		t                    store.Task
		assignees            string
		due                  *int64
		createdAt, updatedAt int64
	)
	if err := r.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status, &t.Priority, &assignees, &due, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.AssigneeIDs = store.DecodeIDs(assignees)
	t.DueDate = timeFromNanos(due)
	t.CreatedAt = store.FromMillis(createdAt)
	t.UpdatedAt = store.FromMillis(updatedAt)
	return &t, nil
}

// --- Conversations ---

func (s *Store) InsertConversation(ctx context.Context, c store.Conversation) (string, error) {
	id := idOr(c.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO conversations(`+conversationColumns+`) VALUES($1, $2, $3, $4, $5, $6)`,
		id, c.WorkspaceID, c.Type, c.TaskID, store.ToMillis(c.CreatedAt), store.ToMillis(c.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	c, err := scanConversation(s.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) GetConversationByTask(ctx context.Context, taskID string) (*store.Conversation, error) {
	c, err := scanConversation(s.q.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE task_id = $1 LIMIT 1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scanConversation(r pgx.Row) (*store.Conversation, error) {
	var (
		c                    store.Conversation
		createdAt, updatedAt int64
	)
	if err := r.Scan(&c.ID, &c.WorkspaceID, &c.Type, &c.TaskID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = store.FromMillis(createdAt)
	c.UpdatedAt = store.FromMillis(updatedAt)
	return &c, nil
}

// --- Messages ---

func (s *Store) InsertMessage(ctx context.Context, m store.Message) (string, error) {
	id := idOr(m.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO messages(`+messageColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, m.ConversationID, m.TaskID, m.SenderAgentID, m.Content, m.MessageType,
		store.EncodeIDs(m.Attachments), store.ToMillis(m.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	rows, err := s.q.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, seq ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Message
	for rows.Next() {
		var (
			m           store.Message
			attachments string
			createdAt   int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.TaskID, &m.SenderAgentID, &m.Content, &m.MessageType, &attachments, &createdAt); err != nil {
			return nil, err
		}
		m.Attachments = store.DecodeIDs(attachments)
		m.CreatedAt = store.FromMillis(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Activities ---

func (s *Store) InsertActivity(ctx context.Context, a store.Activity) (string, error) {
	if a.Type == "" {
		return "", errors.New("activity type required")
	}
	id := idOr(a.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO activities(`+activityColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7)`,
		id, a.WorkspaceID, a.Type, a.AgentID, a.TaskID, a.Message, store.ToMillis(a.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListActivities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error) {
	var a args
	q := `SELECT ` + activityColumns + ` FROM activities WHERE TRUE`
	if f.WorkspaceID != "" {
		q += ` AND workspace_id = ` + a.add(f.WorkspaceID)
	}
	if f.Type != "" {
		q += ` AND type = ` + a.add(f.Type)
	}
	if f.TaskID != "" {
		q += ` AND task_id = ` + a.add(f.TaskID)
	}
	q += ` ORDER BY created_at DESC, seq DESC`
	if f.Limit > 0 {
		q += ` LIMIT ` + a.add(f.Limit)
	}
	rows, err := s.q.Query(ctx, q, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Activity
	for rows.Next() {
		var (
			act       store.Activity
			createdAt int64
		)
		if err := rows.Scan(&act.ID, &act.WorkspaceID, &act.Type, &act.AgentID, &act.TaskID, &act.Message, &createdAt); err != nil {
			return nil, err
		}
		act.CreatedAt = store.FromMillis(createdAt)
		out = append(out, act)
	}
	return out, rows.Err()
}

// --- Notifications ---

func (s *Store) InsertNotification(ctx context.Context, n store.Notification) (string, error) {
	if n.AgentID == "" {
		return "", errors.New("notification agent required")
	}
	id := idOr(n.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO notifications(`+notificationColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7)`,
		id, n.WorkspaceID, n.AgentID, n.Content, n.TaskID, n.Delivered, store.ToMillis(n.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*store.Notification, error) {
	n, err := scanNotification(s.q.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *Store) ListNotifications(ctx context.Context, f store.NotificationFilter) ([]store.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE agent_id = $1`
	if f.UndeliveredOnly {
		q += ` AND NOT delivered`
	}
	q += ` ORDER BY created_at ASC, seq ASC`
	rows, err := s.q.Query(ctx, q, f.AgentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationDelivered(ctx context.Context, id string) error {
	_, err := s.q.Exec(ctx, `UPDATE notifications SET delivered = TRUE WHERE id = $1`, id)
	return err
}

func scanNotification(r pgx.Row) (*store.Notification, error) {
	var (
		n         store.Notification
		createdAt int64
	)
	if err := r.Scan(&n.ID, &n.WorkspaceID, &n.AgentID, &n.Content, &n.TaskID, &n.Delivered, &createdAt); err != nil {
		return nil, err
	}
	n.CreatedAt = store.FromMillis(createdAt)
	return &n, nil
}

// --- Documents ---

func (s *Store) InsertDocument(ctx context.Context, d store.Document) (string, error) {
	if d.Title == "" {
		return "", errors.New("document title required")
	}
	id := idOr(d.ID)
	_, err := s.q.Exec(ctx, `INSERT INTO documents(`+documentColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, d.WorkspaceID, d.TaskID, d.CreatedBy, d.Title, d.Content, d.Type, store.ToMillis(d.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListDocuments(ctx context.Context, f store.DocumentFilter) ([]store.Document, error) {
	var a args
	q := `SELECT ` + documentColumns + ` FROM documents WHERE workspace_id = ` + a.add(f.WorkspaceID)
	if f.TaskID != "" {
		q += ` AND task_id = ` + a.add(f.TaskID)
	}
	q += ` ORDER BY created_at ASC, seq ASC`
	rows, err := s.q.Query(ctx, q, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Document
	for rows.Next() {
		var (
			d         store.Document
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.TaskID, &d.CreatedBy, &d.Title, &d.Content, &d.Type, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = store.FromMillis(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

var _ store.Store = (*Store)(nil)
