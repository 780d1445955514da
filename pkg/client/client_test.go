package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ankittk/missionctl/internal/httpapi"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:3548/", "")
	if c.BaseURL != "http://localhost:3548" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:3548", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ok, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "down" {
		t.Fatalf("expected APIError 503 down, got %v", err)
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, _ = New(srv.URL, "mykey").Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func newLiveServer(t *testing.T, password string) *httptest.Server {
	t.Helper()
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: t.TempDir(), Addr: "127.0.0.1:0", Password: password})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(func() {
		app.Hub.Close()
		ts.Close()
		_ = app.Engine.Store.Close()
	})
	return ts
}

func TestClientAgainstServer(t *testing.T) {
	ts := newLiveServer(t, "")
	c := New(ts.URL, "")
	ctx := context.Background()

	ws, err := c.CreateWorkspace(ctx, "Squad", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	lead, err := c.CreateAgent(ctx, ws, NewAgent{Name: "Jarvis", Role: "Lead", IsMaster: true})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	dev, err := c.CreateAgent(ctx, ws, NewAgent{Name: "Friday", Role: "Developer"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	task, err := c.CreateTask(ctx, ws, NewTask{Title: "Ship the landing page", Priority: "high"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	assigned, err := c.AssignTask(ctx, task, dev)
	if err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if assigned.Status != "assigned" || len(assigned.AssigneeIDs) != 1 || assigned.AssigneeIDs[0] != dev {
		t.Fatalf("assigned task: %+v", assigned)
	}
	moved, err := c.UpdateTaskStatus(ctx, task, "in_progress")
	if err != nil || moved.Status != "in_progress" {
		t.Fatalf("UpdateTaskStatus: %+v %v", moved, err)
	}
	if _, err := c.UpdateTaskStatus(ctx, task, "bogus"); err == nil {
		t.Fatal("UpdateTaskStatus bogus: expected error")
	}

	if _, err := c.PostMessage(ctx, task, &dev, "@Jarvis preview deployed"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	msgs, err := c.ListMessages(ctx, task)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("ListMessages: %v %d", err, len(msgs))
	}
	conv, err := c.GetTaskConversation(ctx, task)
	if err != nil || conv.ID != msgs[0].ConversationID {
		t.Fatalf("GetTaskConversation: %+v %v", conv, err)
	}

	notes, err := c.ListNotifications(ctx, lead, false)
	if err != nil || len(notes) != 1 {
		t.Fatalf("ListNotifications: %v %+v", err, notes)
	}
	if err := c.MarkDelivered(ctx, notes[0].ID); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if err := c.MarkDelivered(ctx, notes[0].ID); err != nil {
		t.Fatalf("MarkDelivered again: %v", err)
	}
	if notes, _ := c.ListNotifications(ctx, lead, true); len(notes) != 1 || !notes[0].Delivered {
		t.Fatalf("ListNotifications all: %+v", notes)
	}

	if err := c.Heartbeat(ctx, dev); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := c.UpdateAgentStatus(ctx, lead, "offline"); err != nil {
		t.Fatalf("UpdateAgentStatus: %v", err)
	}
	a, err := c.GetAgent(ctx, lead)
	if err != nil || a.Status != "offline" {
		t.Fatalf("GetAgent: %+v %v", a, err)
	}

	tasks, err := c.ListTasks(ctx, ws, TaskQuery{AssigneeID: dev})
	if err != nil || len(tasks) != 1 {
		t.Fatalf("ListTasks: %v %d", err, len(tasks))
	}
	acts, err := c.ListActivities(ctx, ActivityQuery{WorkspaceID: ws, TaskID: task})
	if err != nil || len(acts) == 0 {
		t.Fatalf("ListActivities: %v %d", err, len(acts))
	}

	if _, err := c.CreateDocument(ctx, ws, NewDocument{TaskID: &task, CreatedBy: dev, Title: "Release notes", Content: "v1"}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	docs, err := c.ListDocuments(ctx, ws, task)
	if err != nil || len(docs) != 1 || docs[0].Type != "notes" {
		t.Fatalf("ListDocuments: %v %+v", err, docs)
	}
	hits, err := c.Search(ctx, ws, "landing", 0)
	if err != nil || len(hits) == 0 || hits[0].ID != task {
		t.Fatalf("Search: %v %+v", err, hits)
	}

	wss, err := c.ListWorkspaces(ctx)
	if err != nil || len(wss) != 1 || wss[0].AgentCount != 2 {
		t.Fatalf("ListWorkspaces: %v %+v", err, wss)
	}
	boot, err := c.Bootstrap(ctx)
	if err != nil || len(boot.Agents) != 2 {
		t.Fatalf("Bootstrap: %v", err)
	}

	if _, err := c.GetTask(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("GetTask missing: %v", err)
	}
}

func TestClient_workspaceLifecycleAndPlanning(t *testing.T) {
	ts := newLiveServer(t, "")
	c := New(ts.URL, "")
	ctx := context.Background()

	ws, err := c.CreateWorkspace(ctx, "Launch Crew", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	got, err := c.GetWorkspace(ctx, "launch-crew")
	if err != nil || got.ID != ws {
		t.Fatalf("GetWorkspace by slug: %+v %v", got, err)
	}
	name := "Launch Crew II"
	updated, err := c.UpdateWorkspace(ctx, ws, WorkspaceUpdate{Name: &name})
	if err != nil || updated.Name != name || updated.Slug != "launch-crew" {
		t.Fatalf("UpdateWorkspace: %+v %v", updated, err)
	}

	task, err := c.CreateTask(ctx, ws, NewTask{Title: "Plan the launch"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	approved, err := c.ApproveTaskPlanning(ctx, task)
	if err != nil || approved.Status != "inbox" {
		t.Fatalf("ApproveTaskPlanning: %+v %v", approved, err)
	}
	var apiErr *APIError
	if _, err := c.ApproveTaskPlanning(ctx, task); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("ApproveTaskPlanning twice: %v", err)
	}

	if err := c.DeleteWorkspace(ctx, ws); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("DeleteWorkspace with tasks: %v", err)
	}
	empty, err := c.CreateWorkspace(ctx, "Scratch", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if err := c.DeleteWorkspace(ctx, empty); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}
	if _, err := c.GetWorkspace(ctx, empty); !IsNotFound(err) {
		t.Fatalf("GetWorkspace after delete: %v", err)
	}
}

func TestClientWithPassword(t *testing.T) {
	ts := newLiveServer(t, "hunter2")
	ctx := context.Background()
	if _, err := New(ts.URL, "").ListWorkspaces(ctx); err == nil {
		t.Fatal("expected 401 without key")
	}
	if _, err := New(ts.URL, "hunter2").ListWorkspaces(ctx); err != nil {
		t.Fatalf("with key: %v", err)
	}
}

func TestStream(t *testing.T) {
	ts := newLiveServer(t, "")
	c := New(ts.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ws, err := c.CreateWorkspace(ctx, "Squad", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	errDone := errors.New("done")
	var got []string
	err = c.Stream(ctx, ws, func(ev Event) error {
		got = append(got, ev.Type)
		switch ev.Type {
		case "connected":
			if _, err := c.CreateTask(ctx, ws, NewTask{Title: "Streamed"}); err != nil {
				return err
			}
		case "task_created":
			if ev.Activity == nil || ev.WorkspaceID != ws {
				t.Errorf("task_created event: %+v", ev)
			}
			return errDone
		}
		return nil
	})
	if !errors.Is(err, errDone) {
		t.Fatalf("Stream: %v (events %v)", err, got)
	}
}
