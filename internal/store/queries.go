package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
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

// --- Workspaces ---

func (s *sqlStore) InsertWorkspace(ctx context.Context, w Workspace) (string, error) {
	if w.Name == "" {
		return "", errors.New("workspace name required")
	}
	id := idOr(w.ID)
	slug := w.Slug
	if slug == "" {
		slug = id
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO workspaces(id, name, slug, description, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?)`,
		id, w.Name, slug, nullString(w.Description), ToMillis(w.CreatedAt), ToMillis(w.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

const workspaceSelect = `
SELECT w.id, w.name, w.slug, w.description, w.created_at, w.updated_at,
  (SELECT COUNT(*) FROM agents a WHERE a.workspace_id = w.id),
  (SELECT COUNT(*) FROM tasks t WHERE t.workspace_id = w.id)
FROM workspaces w`

func (s *sqlStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	return s.workspaceWhere(ctx, `w.id = ?`, id)
}

func (s *sqlStore) GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error) {
	return s.workspaceWhere(ctx, `w.slug = ?`, slug)
}

func (s *sqlStore) workspaceWhere(ctx context.Context, cond string, arg any) (*Workspace, error) {
	w, err := scanWorkspace(s.q.QueryRowContext(ctx, workspaceSelect+` WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *sqlStore) PatchWorkspace(ctx context.Context, id string, p WorkspacePatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{ToMillis(p.UpdatedAt)}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	args = append(args, id)
	_, err := s.q.ExecContext(ctx, `UPDATE workspaces SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func (s *sqlStore) DeleteWorkspace(ctx context.Context, id string) error {
	// Explicit, since foreign_keys is a per-connection pragma.
	if _, err := s.q.ExecContext(ctx, `DELETE FROM documents WHERE workspace_id = ?`, id); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	return err
}

func (s *sqlStore) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := s.q.QueryContext(ctx, workspaceSelect+` ORDER BY w.created_at ASC, w.rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWorkspace(r rowScanner) (*Workspace, error) {
	var (
		w                    Workspace
		desc                 sql.NullString
		createdAt, updatedAt int64
	)
	if err := r.Scan(&w.ID, &w.Name, &w.Slug, &desc, &createdAt, &updatedAt, &w.AgentCount, &w.TaskCount); err != nil {
		return nil, err
	}
	w.Description = strPtr(desc)
	w.CreatedAt = FromMillis(createdAt)
	w.UpdatedAt = FromMillis(updatedAt)
	return &w, nil
}

// --- Agents ---

func (s *sqlStore) InsertAgent(ctx context.Context, a Agent) (string, error) {
	if a.Name == "" {
		return "", errors.New("agent name required")
	}
	id := idOr(a.ID)
	_, err := s.q.ExecContext(ctx, `INSERT INTO agents(`+agentColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.WorkspaceID, a.Name, a.Role, nullString(a.Description), a.AvatarEmoji, a.Status, a.IsMaster, a.SessionKey,
		nullMillis(a.LastHeartbeat), ToMillis(a.CreatedAt), ToMillis(a.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	a, err := scanAgent(s.stmt(ctx, s.stmtGetAgent).QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *sqlStore) ListAgents(ctx context.Context, workspaceID string) ([]Agent, error) {
	return s.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents WHERE workspace_id = ? ORDER BY created_at ASC, rowid ASC`, workspaceID)
}

func (s *sqlStore) FindAgentsByName(ctx context.Context, workspaceID, name string) ([]Agent, error) {
	// Exact, case-sensitive match (SQLite '=' uses BINARY collation on TEXT).
	return s.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents WHERE workspace_id = ? AND name = ? ORDER BY created_at ASC, rowid ASC`, workspaceID, name)
}

func (s *sqlStore) queryAgents(ctx context.Context, q string, args ...any) ([]Agent, error) {
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *sqlStore) PatchAgent(ctx context.Context, id string, p AgentPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{ToMillis(p.UpdatedAt)}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.LastHeartbeat != nil {
		sets = append(sets, "last_heartbeat = ?")
		args = append(args, ToMillis(*p.LastHeartbeat))
	}
	args = append(args, id)
	_, err := s.q.ExecContext(ctx, `UPDATE agents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func scanAgent(r rowScanner) (*Agent, error) {
	var (
		a                    Agent
		desc                 sql.NullString
		heartbeat            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := r.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Role, &desc, &a.AvatarEmoji, &a.Status, &a.IsMaster,
		&a.SessionKey, &heartbeat, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Description = strPtr(desc)
	a.LastHeartbeat = timePtr(heartbeat)
	a.CreatedAt = FromMillis(createdAt)
	a.UpdatedAt = FromMillis(updatedAt)
	return &a, nil
}

// --- Tasks ---

func (s *sqlStore) InsertTask(ctx context.Context, t Task) (string, error) {
	if t.Title == "" {
		return "", errors.New("task title required")
	}
	id := idOr(t.ID)
	_, err := s.q.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, t.WorkspaceID, t.Title, nullString(t.Description), t.Status, t.Priority, EncodeIDs(t.AssigneeIDs),
		nullNanos(t.DueDate), ToMillis(t.CreatedAt), ToMillis(t.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.stmt(ctx, s.stmtGetTask).QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *sqlStore) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.WorkspaceID != "" {
		q += ` AND workspace_id = ?`
		args = append(args, f.WorkspaceID)
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		q += ` AND EXISTS (SELECT 1 FROM json_each(tasks.assignee_ids) WHERE json_each.value = ?)`
		args = append(args, f.AssigneeID)
	}
	q += ` ORDER BY created_at ASC, rowid ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *sqlStore) PatchTask(ctx context.Context, id string, p TaskPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{ToMillis(p.UpdatedAt)}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.AssigneeIDs != nil {
		sets = append(sets, "assignee_ids = ?")
		args = append(args, EncodeIDs(*p.AssigneeIDs))
	}
	args = append(args, id)
	_, err := s.q.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func scanTask(r rowScanner) (*Task, error) {
	var (
		t                    Task
		desc                 sql.NullString
		assignees            string
		due                  sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := r.Scan(&t.ID, &t.WorkspaceID, &t.Title, &desc, &t.Status, &t.Priority, &assignees, &due, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Description = strPtr(desc)
	t.AssigneeIDs = DecodeIDs(assignees)
	t.DueDate = nanosPtr(due)
	t.CreatedAt = FromMillis(createdAt)
	t.UpdatedAt = FromMillis(updatedAt)
	return &t, nil
}

// --- Conversations ---

func (s *sqlStore) InsertConversation(ctx context.Context, c Conversation) (string, error) {
	id := idOr(c.ID)
	_, err := s.q.ExecContext(ctx, `INSERT INTO conversations(`+conversationColumns+`) VALUES(?, ?, ?, ?, ?, ?)`,
		id, c.WorkspaceID, c.Type, nullString(c.TaskID), ToMillis(c.CreatedAt), ToMillis(c.UpdatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.q.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *sqlStore) GetConversationByTask(ctx context.Context, taskID string) (*Conversation, error) {
	c, err := scanConversation(s.q.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE task_id = ? LIMIT 1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scanConversation(r rowScanner) (*Conversation, error) {
	var (
		c                    Conversation
		taskID               sql.NullString
		createdAt, updatedAt int64
	)
	if err := r.Scan(&c.ID, &c.WorkspaceID, &c.Type, &taskID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.TaskID = strPtr(taskID)
	c.CreatedAt = FromMillis(createdAt)
	c.UpdatedAt = FromMillis(updatedAt)
	return &c, nil
}

// --- Messages ---

func (s *sqlStore) InsertMessage(ctx context.Context, m Message) (string, error) {
	id := idOr(m.ID)
	_, err := s.q.ExecContext(ctx, `INSERT INTO messages(`+messageColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.ConversationID, nullString(m.TaskID), nullString(m.SenderAgentID), m.Content, m.MessageType,
		EncodeIDs(m.Attachments), ToMillis(m.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Message
	for rows.Next() {
		var (
			m             Message
			taskID        sql.NullString
			sender        sql.NullString
			attachments   string
			createdAtMsec int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &taskID, &sender, &m.Content, &m.MessageType, &attachments, &createdAtMsec); err != nil {
			return nil, err
		}
		m.TaskID = strPtr(taskID)
		m.SenderAgentID = strPtr(sender)
		m.Attachments = DecodeIDs(attachments)
		m.CreatedAt = FromMillis(createdAtMsec)
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Activities ---

func (s *sqlStore) InsertActivity(ctx context.Context, a Activity) (string, error) {
	if a.Type == "" {
		return "", errors.New("activity type required")
	}
	id := idOr(a.ID)
	_, err := s.stmt(ctx, s.stmtInsertActivity).ExecContext(ctx,
		id, nullString(a.WorkspaceID), a.Type, nullString(a.AgentID), nullString(a.TaskID), a.Message, ToMillis(a.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities WHERE 1=1`
	var args []any
	if f.WorkspaceID != "" {
		q += ` AND workspace_id = ?`
		args = append(args, f.WorkspaceID)
	}
	if f.Type != "" {
		q += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.TaskID != "" {
		q += ` AND task_id = ?`
		args = append(args, f.TaskID)
	}
	q += ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Activity
	for rows.Next() {
		var (
			a                        Activity
			workspaceID, agentID, tk sql.NullString
			createdAt                int64
		)
		if err := rows.Scan(&a.ID, &workspaceID, &a.Type, &agentID, &tk, &a.Message, &createdAt); err != nil {
			return nil, err
		}
		a.WorkspaceID = strPtr(workspaceID)
		a.AgentID = strPtr(agentID)
		a.TaskID = strPtr(tk)
		a.CreatedAt = FromMillis(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Notifications ---

func (s *sqlStore) InsertNotification(ctx context.Context, n Notification) (string, error) {
	if n.AgentID == "" {
		return "", errors.New("notification agent required")
	}
	id := idOr(n.ID)
	_, err := s.q.ExecContext(ctx, `INSERT INTO notifications(`+notificationColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		id, n.WorkspaceID, n.AgentID, n.Content, nullString(n.TaskID), n.Delivered, ToMillis(n.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) GetNotification(ctx context.Context, id string) (*Notification, error) {
	n, err := scanNotification(s.q.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *sqlStore) ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE agent_id = ?`
	if f.UndeliveredOnly {
		q += ` AND delivered = 0`
	}
	q += ` ORDER BY created_at ASC, rowid ASC`
	rows, err := s.q.QueryContext(ctx, q, f.AgentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *sqlStore) MarkNotificationDelivered(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE id = ?`, id)
	return err
}

func scanNotification(r rowScanner) (*Notification, error) {
	var (
		n         Notification
		taskID    sql.NullString
		createdAt int64
	)
	if err := r.Scan(&n.ID, &n.WorkspaceID, &n.AgentID, &n.Content, &taskID, &n.Delivered, &createdAt); err != nil {
		return nil, err
	}
	n.TaskID = strPtr(taskID)
	n.CreatedAt = FromMillis(createdAt)
	return &n, nil
}

// --- Documents ---

func (s *sqlStore) InsertDocument(ctx context.Context, d Document) (string, error) {
	if d.Title == "" {
		return "", errors.New("document title required")
	}
	id := idOr(d.ID)
	_, err := s.q.ExecContext(ctx, `INSERT INTO documents(`+documentColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.WorkspaceID, nullString(d.TaskID), d.CreatedBy, d.Title, d.Content, d.Type, ToMillis(d.CreatedAt))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqlStore) ListDocuments(ctx context.Context, f DocumentFilter) ([]Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE workspace_id = ?`
	args := []any{f.WorkspaceID}
	if f.TaskID != "" {
		q += ` AND task_id = ?`
		args = append(args, f.TaskID)
	}
	q += ` ORDER BY created_at ASC, rowid ASC`
	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Document
	for rows.Next() {
		var (
			d         Document
			taskID    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &taskID, &d.CreatedBy, &d.Title, &d.Content, &d.Type, &createdAt); err != nil {
			return nil, err
		}
		d.TaskID = strPtr(taskID)
		d.CreatedAt = FromMillis(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}
