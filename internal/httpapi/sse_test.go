package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ankittk/missionctl/internal/workflow"
)

func TestSSEHub_Subscribe_Publish_Unsubscribe(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe("")
	hub.PublishJSON(map[string]string{"type": "test"})
	msg := <-ch
	if !strings.Contains(string(msg), "test") {
		t.Errorf("PublishJSON: got %s", msg)
	}
	hub.Unsubscribe(ch)
	// After unsubscribe, channel is closed
	_, ok := <-ch
	if ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}

func TestSSEHub_WorkspaceFilter(t *testing.T) {
	hub := NewSSEHub()
	all := hub.Subscribe("")
	onlyA := hub.Subscribe("ws-a")
	onlyB := hub.Subscribe("ws-b")

	if err := hub.Publish(context.Background(), workflow.Event{Type: "task_created", WorkspaceID: "ws-a"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for name, ch := range map[string]chan []byte{"all": all, "ws-a": onlyA} {
		select {
		case msg := <-ch:
			if !strings.Contains(string(msg), `"workspace_id":"ws-a"`) {
				t.Errorf("%s: got %s", name, msg)
			}
		default:
			t.Errorf("%s: expected event", name)
		}
	}
	select {
	case msg := <-onlyB:
		t.Errorf("ws-b received foreign event %s", msg)
	default:
	}

	hub.Close()
	if _, ok := <-onlyB; ok {
		t.Error("expected channel closed after Close")
	}
	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers after Close = %d", hub.Subscribers())
	}
	if _, ok := <-hub.Subscribe(""); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestSSEHub_Handler(t *testing.T) {
	hub := NewSSEHub()
	handler := hub.Handler()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler(rec, req)
		close(done)
	}()
	// Wait for handler to send "connected" then stop (avoid reading rec.Body while handler writes - race).
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	sc := bufio.NewScanner(rec.Body)
	var found bool
	for sc.Scan() {
		if strings.Contains(sc.Text(), "connected") {
			found = true
			break
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !found {
		t.Error("expected response to contain \"connected\"")
	}
}

// TestStreamReceivesCommittedEvents checks that a mutation made over HTTP
// reaches a /stream subscriber filtered to its workspace.
func TestStreamReceivesCommittedEvents(t *testing.T) {
	t.Parallel()
	app, ts := newTestServer(t, ServerOptions{})
	wsID := createID(t, ts.URL+"/workspaces", map[string]any{"name": "Live"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream?workspace_id="+wsID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() || !strings.Contains(sc.Text(), `"type":"connected"`) {
		t.Fatalf("expected connected event, got %q", sc.Text())
	}
	// The subscription is registered before the connected event is written.
	if app.Hub.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d", app.Hub.Subscribers())
	}

	createID(t, ts.URL+"/workspaces/"+wsID+"/tasks", map[string]any{"title": "Streamed"})

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"type":"task_created"`) {
			if !strings.Contains(line, "Task created: Streamed") {
				t.Fatalf("event: %s", line)
			}
			return
		}
	}
	t.Fatalf("stream ended without task_created: %v", sc.Err())
}
