package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/ankittk/missionctl/pkg/models"
	"github.com/segmentio/kafka-go"
)

func TestRegistry_RegisterGet(t *testing.T) {
	reg := NewRegistry()
	c := SlackWebhook{WebhookURL: "https://example.com"}
	reg.Register("slack", c)
	got, ok := reg.Get("slack").(SlackWebhook)
	if !ok || got.WebhookURL != c.WebhookURL {
		t.Fatalf("Get(slack): got %+v", reg.Get("slack"))
	}
	if reg.Get("nonexistent") != nil {
		t.Fatal("Get(nonexistent) should be nil")
	}
	if err := reg.Notify(context.Background(), "nonexistent", "x"); err == nil {
		t.Fatal("Notify(nonexistent) should fail")
	}
}

func slackServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		var body struct {
			Text    string `json:"text"`
			Channel string `json:"channel"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		texts = append(texts, body.Text)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &texts
}

func TestSlackWebhook_Notify_mockHTTP(t *testing.T) {
	srv, texts := slackServer(t)
	c := SlackWebhook{WebhookURL: srv.URL, Channel: "#ops"}
	if err := c.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(*texts) != 1 || (*texts)[0] != "hello" {
		t.Fatalf("received: %v", *texts)
	}
}

func TestSlackWebhook_Notify_emptyURL(t *testing.T) {
	c := SlackWebhook{}
	if err := c.Notify(context.Background(), "msg"); err == nil {
		t.Fatal("expected error when webhook URL empty")
	}
}

func TestSlackWebhook_Notify_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	if err := (SlackWebhook{WebhookURL: srv.URL}).Notify(context.Background(), "msg"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestSlackWebhook_PublishFiltersEvents(t *testing.T) {
	srv, texts := slackServer(t)
	s := SlackWebhook{WebhookURL: srv.URL}
	ctx := context.Background()

	assigned := workflow.Event{Type: models.ActivityTaskAssigned, Activity: &models.Activity{Type: models.ActivityTaskAssigned, Message: "Task assigned to Tej"}}
	heartbeat := workflow.Event{Type: models.ActivityAgentHeartbeat, Activity: &models.Activity{Type: models.ActivityAgentHeartbeat, Message: "Tej checked in"}}
	for _, ev := range []workflow.Event{assigned, heartbeat} {
		if err := s.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(*texts) != 1 || (*texts)[0] != "*task_assigned*: Task assigned to Tej" {
		t.Fatalf("posted: %v", *texts)
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestKafkaSink_PublishKeysByWorkspace(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSink{Topic: "events", writer: w}
	ev := workflow.Event{Type: models.ActivityTaskCreated, WorkspaceID: "ws-1", TaskID: "t-1", At: time.Now()}
	if err := k.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages: %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "ws-1" || len(m.Headers) != 1 || string(m.Headers[0].Value) != models.ActivityTaskCreated {
		t.Fatalf("message: %+v", m)
	}
	var decoded workflow.Event
	if err := json.Unmarshal(m.Value, &decoded); err != nil {
		t.Fatalf("value: %v", err)
	}
	if decoded.TaskID != "t-1" {
		t.Fatalf("decoded: %+v", decoded)
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Fatalf("Close: %v closed=%v", err, w.closed)
	}
}

func TestNewKafkaSink(t *testing.T) {
	k := NewKafkaSink([]string{"localhost:9092"}, "events")
	if k.Name() != "kafka" || k.Topic != "events" {
		t.Fatalf("sink: %+v", k)
	}
	kw, ok := k.writer.(*kafka.Writer)
	if !ok || kw.Topic != "events" {
		t.Fatalf("writer: %#v", k.writer)
	}
	_ = k.Close()
}

func TestRegistry_PublishJoinsSinkErrors(t *testing.T) {
	reg := NewRegistry()
	ok := &fakeWriter{}
	bad := &fakeWriter{err: errors.New("broker down")}
	reg.Register("kafka", &KafkaSink{Topic: "a", writer: ok})
	reg.Register("kafka-dr", &KafkaSink{Topic: "b", writer: bad})

	err := reg.Publish(context.Background(), workflow.Event{Type: models.ActivityMessageSent})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.msgs) != 1 {
		t.Fatalf("healthy sink got %d messages", len(ok.msgs))
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "kafka" {
		t.Fatalf("Names: %v", names)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuild(t *testing.T) {
	reg := Build(Options{}, nil)
	if len(reg.Names()) != 0 {
		t.Fatalf("empty options registered %v", reg.Names())
	}
	reg = Build(Options{SlackWebhookURL: "https://hooks.example/x", KafkaBrokers: []string{"k:9092"}, KafkaTopic: "t"}, nil)
	if names := reg.Names(); len(names) != 2 {
		t.Fatalf("Names: %v", names)
	}
	_ = reg.Close()
}

func TestAsync_DeliversAndDrains(t *testing.T) {
	var mu sync.Mutex
	var got []string
	next := workflow.PublisherFunc(func(_ context.Context, ev workflow.Event) error {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
		return nil
	})
	a := NewAsync(next, 8, time.Second, nil)
	for _, typ := range []string{"a", "b", "c"} {
		if err := a.Publish(context.Background(), workflow.Event{Type: typ}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Publishing after Close is dropped, not a panic.
	_ = a.Publish(context.Background(), workflow.Event{Type: "late"})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("delivered: %v", got)
	}
}
