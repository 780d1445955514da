package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/ankittk/missionctl/pkg/models"
)

type handlers struct {
	eng *workflow.Engine
	log *slog.Logger
}

// pathParts splits the path below prefix, e.g. "/tasks/abc/assign" -> ["abc", "assign"].
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func writeCreated(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"id": id})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]any{"ok": true})
}

// --- Workspaces ---

func (h *handlers) workspaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.eng.ListWorkspaces(r.Context())
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(list))
	case http.MethodPost:
		var body struct {
			Name        string  `json:"name"`
			Description *string `json:"description"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		id, err := h.eng.CreateWorkspace(r.Context(), body.Name, body.Description)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeCreated(w, id)
	default:
		methodNotAllowed(w)
	}
}

// workspaceRoutes serves /workspaces/{id}[/agents|tasks|activities|documents|search].
func (h *handlers) workspaceRoutes(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/workspaces/")
	if len(parts) == 0 || len(parts) > 2 {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	ws, err := h.eng.GetWorkspace(r.Context(), parts[0])
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}
	if ws == nil {
		writeJSONError(w, http.StatusNotFound, "workspace not found")
		return
	}
	if len(parts) == 1 {
		h.workspace(w, r, ws)
		return
	}

	switch parts[1] {
	case "agents":
		h.workspaceAgents(w, r, ws.ID)
	case "tasks":
		h.workspaceTasks(w, r, ws.ID)
	case "activities":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.listActivities(w, r, ws.ID)
	case "documents":
		h.workspaceDocuments(w, r, ws.ID)
	case "search":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		results, err := h.eng.Search(r.Context(), ws.ID, r.URL.Query().Get("q"), limit)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(results))
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

// workspace serves GET, PATCH and DELETE on /workspaces/{id or slug}.
func (h *handlers) workspace(w http.ResponseWriter, r *http.Request, ws *store.Workspace) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, ws)
	case http.MethodPatch:
		var body struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := h.eng.UpdateWorkspace(r.Context(), ws.ID, workflow.WorkspaceUpdate{Name: body.Name, Description: body.Description}); err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		updated, err := h.eng.GetWorkspace(r.Context(), ws.ID)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		if updated == nil {
			writeOK(w)
			return
		}
		writeJSON(w, updated)
	case http.MethodDelete:
		if err := h.eng.DeleteWorkspace(r.Context(), ws.ID); err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeOK(w)
	default:
		methodNotAllowed(w)
	}
}

func (h *handlers) workspaceAgents(w http.ResponseWriter, r *http.Request, wsID string) {
	switch r.Method {
	case http.MethodGet:
		agents, err := h.eng.ListAgents(r.Context(), wsID)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(agents))
	case http.MethodPost:
		var body struct {
			Name        string  `json:"name"`
			Role        string  `json:"role"`
			Description *string `json:"description"`
			AvatarEmoji string  `json:"avatar_emoji"`
			IsMaster    bool    `json:"is_master"`
			SessionKey  string  `json:"session_key"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		id, err := h.eng.CreateAgent(r.Context(), workflow.NewAgent{
			WorkspaceID: wsID,
			Name:        body.Name,
			Role:        body.Role,
			Description: body.Description,
			AvatarEmoji: body.AvatarEmoji,
			IsMaster:    body.IsMaster,
			SessionKey:  body.SessionKey,
		})
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeCreated(w, id)
	default:
		methodNotAllowed(w)
	}
}

func (h *handlers) workspaceTasks(w http.ResponseWriter, r *http.Request, wsID string) {
	switch r.Method {
	case http.MethodGet:
		limit, err := queryInt(r, "limit")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		q := r.URL.Query()
		tasks, err := h.eng.ListTasks(r.Context(), store.TaskFilter{
			WorkspaceID: wsID,
			Status:      q.Get("status"),
			AssigneeID:  q.Get("assignee_id"),
			Limit:       limit,
		})
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(tasks))
	case http.MethodPost:
		var body struct {
			Title       string     `json:"title"`
			Description *string    `json:"description"`
			Priority    string     `json:"priority"`
			AssigneeIDs []string   `json:"assignee_ids"`
			DueDate     *time.Time `json:"due_date"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		id, err := h.eng.CreateTask(r.Context(), workflow.NewTask{
			WorkspaceID: wsID,
			Title:       body.Title,
			Description: body.Description,
			Priority:    body.Priority,
			AssigneeIDs: body.AssigneeIDs,
			DueDate:     body.DueDate,
		})
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeCreated(w, id)
	default:
		methodNotAllowed(w)
	}
}

func (h *handlers) workspaceDocuments(w http.ResponseWriter, r *http.Request, wsID string) {
	switch r.Method {
	case http.MethodGet:
		docs, err := h.eng.ListDocuments(r.Context(), store.DocumentFilter{
			WorkspaceID: wsID,
			TaskID:      r.URL.Query().Get("task_id"),
		})
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(docs))
	case http.MethodPost:
		var body struct {
			TaskID    *string `json:"task_id"`
			CreatedBy string  `json:"created_by"`
			Title     string  `json:"title"`
			Content   string  `json:"content"`
			Type      string  `json:"type"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		id, err := h.eng.CreateDocument(r.Context(), workflow.NewDocument{
			WorkspaceID: wsID,
			TaskID:      body.TaskID,
			CreatedBy:   body.CreatedBy,
			Title:       body.Title,
			Content:     body.Content,
			Type:        body.Type,
		})
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeCreated(w, id)
	default:
		methodNotAllowed(w)
	}
}

// --- Tasks ---

// taskRoutes serves /tasks/{id}, /tasks/{id}/assign and /tasks/{id}/conversation.
func (h *handlers) taskRoutes(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/tasks/")
	if len(parts) == 3 && parts[1] == "planning" && parts[2] == "approve" {
		parts = []string{parts[0], "planning/approve"}
	}
	if len(parts) == 0 || len(parts) > 2 {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			t, err := h.eng.GetTask(r.Context(), id)
			if err != nil {
				writeEngineError(w, h.log, err)
				return
			}
			if t == nil {
				writeJSONError(w, http.StatusNotFound, "task not found")
				return
			}
			writeJSON(w, t)
		case http.MethodPatch:
			var body struct {
				Status string `json:"status"`
			}
			if !decodeJSON(w, r, &body) {
				return
			}
			if err := h.eng.UpdateTaskStatus(r.Context(), id, body.Status); err != nil {
				writeEngineError(w, h.log, err)
				return
			}
			h.writeTask(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "assign":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body struct {
			AgentIDs []string `json:"agent_ids"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := h.eng.AssignTask(r.Context(), id, body.AgentIDs); err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		h.writeTask(w, r, id)
	case "planning/approve":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if err := h.eng.ApproveTaskPlanning(r.Context(), id); err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		h.writeTask(w, r, id)
	case "conversation":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		c, err := h.eng.GetTaskConversation(r.Context(), id)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		if c == nil {
			writeJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeJSON(w, c)
	case "messages":
		h.messages(w, r, id)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

// writeTask answers with the task after a mutation; a task that vanished under
// SilentNotFound yields {"ok": true}.
func (h *handlers) writeTask(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.eng.GetTask(r.Context(), id)
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}
	if t == nil {
		writeOK(w)
		return
	}
	writeJSON(w, t)
}

// --- Conversations & messages ---

func (h *handlers) conversationRoutes(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/conversations/")
	if len(parts) != 2 || parts[1] != "messages" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	h.messages(w, r, parts[0])
}

// messages lists or posts messages; ref is a conversation id or a task id.
func (h *handlers) messages(w http.ResponseWriter, r *http.Request, ref string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := h.eng.ListMessages(r.Context(), ref)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(msgs))
	case http.MethodPost:
		var body struct {
			SenderAgentID *string  `json:"sender_agent_id"`
			Content       string   `json:"content"`
			Attachments   []string `json:"attachments"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		id, err := h.eng.PostMessage(r.Context(), workflow.NewMessage{
			Ref:           ref,
			SenderAgentID: body.SenderAgentID,
			Content:       body.Content,
			Attachments:   body.Attachments,
		})
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		if id == "" {
			writeOK(w)
			return
		}
		writeCreated(w, id)
	default:
		methodNotAllowed(w)
	}
}

// --- Agents & notifications ---

// agentRoutes serves /agents/{id}, /agents/{id}/heartbeat and /agents/{id}/notifications.
func (h *handlers) agentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/agents/")
	if len(parts) == 0 || len(parts) > 2 {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			a, err := h.eng.GetAgent(r.Context(), id)
			if err != nil {
				writeEngineError(w, h.log, err)
				return
			}
			if a == nil {
				writeJSONError(w, http.StatusNotFound, "agent not found")
				return
			}
			writeJSON(w, a)
		case http.MethodPatch:
			var body struct {
				Status string `json:"status"`
			}
			if !decodeJSON(w, r, &body) {
				return
			}
			if err := h.eng.UpdateAgentStatus(r.Context(), id, body.Status); err != nil {
				writeEngineError(w, h.log, err)
				return
			}
			writeOK(w)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "heartbeat":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if err := h.eng.Heartbeat(r.Context(), id); err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeOK(w)
	case "notifications":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
		notes, err := h.eng.ListNotifications(r.Context(), id, all)
		if err != nil {
			writeEngineError(w, h.log, err)
			return
		}
		writeJSON(w, nonNil(notes))
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (h *handlers) notificationRoutes(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/notifications/")
	if len(parts) != 2 || parts[1] != "delivered" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := h.eng.MarkDelivered(r.Context(), parts[0]); err != nil {
		writeEngineError(w, h.log, err)
		return
	}
	writeOK(w)
}

// --- Activities ---

func (h *handlers) activities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	h.listActivities(w, r, r.URL.Query().Get("workspace_id"))
}

func (h *handlers) listActivities(w http.ResponseWriter, r *http.Request, wsID string) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	list, err := h.eng.ListActivities(r.Context(), store.ActivityFilter{
		WorkspaceID: wsID,
		Type:        q.Get("type"),
		TaskID:      q.Get("task_id"),
		Limit:       limit,
	})
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}
	writeJSON(w, nonNil(list))
}

// --- Bootstrap & metrics ---

func (h *handlers) bootstrap(w http.ResponseWriter, r *http.Request, home string) {
	ctx := r.Context()
	list, err := h.eng.ListWorkspaces(ctx)
	if err != nil {
		writeEngineError(w, h.log, err)
		return
	}
	out := models.Bootstrap{
		Config: models.Config{
			Home:        home,
			Profile:     h.eng.Profile.Name,
			BootstrapID: getBootstrapID(home),
		},
		Workspaces: nonNil(list),
	}
	if len(list) > 0 {
		wsID := list[0].ID
		out.InitialWorkspace = &wsID
		if t, err := h.eng.ListTasks(ctx, store.TaskFilter{WorkspaceID: wsID}); err == nil {
			out.Tasks = t
		}
		if a, err := h.eng.ListAgents(ctx, wsID); err == nil {
			out.Agents = a
		}
		if acts, err := h.eng.ListActivities(ctx, store.ActivityFilter{WorkspaceID: wsID, Limit: 20}); err == nil {
			out.Activities = acts
		}
	}
	writeJSON(w, out)
}

// plainMetrics serves task counts in Prometheus text format when no OTel handler is configured.
func (h *handlers) plainMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	counts := h.eng.TaskCounts(r.Context())
	_, _ = fmt.Fprintf(w, "# TYPE missionctl_tasks gauge\n")
	for _, s := range h.eng.Profile.TaskStatuses {
		_, _ = fmt.Fprintf(w, "missionctl_tasks{status=%q} %d\n", s, counts[s])
	}
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
