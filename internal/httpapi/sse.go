package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ankittk/missionctl/internal/otel"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/ankittk/missionctl/pkg/models"
)

// SSEHub fans committed events out to /stream subscribers. It implements
// workflow.Publisher.
type SSEHub struct {
	mu     sync.RWMutex
	subs   map[chan []byte]string // channel -> workspace filter ("" = all)
	closed bool
}

func NewSSEHub() *SSEHub {
	return &SSEHub{subs: make(map[chan []byte]string)}
}

// Subscribe registers a subscriber. A non-empty workspaceID limits it to that
// workspace's events; broadcasts without a workspace reach everyone.
func (h *SSEHub) Subscribe(workspaceID string) chan []byte {
	ch := make(chan []byte, models.DefaultSSEChannelBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = workspaceID
	otel.AddSSEConnection()
	return ch
}

func (h *SSEHub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
		otel.RemoveSSEConnection()
	}
	h.mu.Unlock()
}

// Subscribers reports the number of open subscriptions.
func (h *SSEHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish sends ev to every matching subscriber.
func (h *SSEHub) Publish(ctx context.Context, ev workflow.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.send(ctx, ev.WorkspaceID, b)
	return nil
}

// PublishJSON broadcasts v to every subscriber.
func (h *SSEHub) PublishJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.send(context.Background(), "", b)
}

func (h *SSEHub) send(ctx context.Context, workspaceID string, b []byte) {
	otel.RecordSSEEvent(ctx)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, filter := range h.subs {
		if filter != "" && workspaceID != "" && filter != workspaceID {
			continue
		}
		select {
		case ch <- b:
		default:
			// Drop if subscriber is too slow; prevents global backpressure.
		}
	}
}

// Close ends every open stream. Later subscribers get a closed channel.
func (h *SSEHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
		otel.RemoveSSEConnection()
	}
}

func (h *SSEHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.Subscribe(r.URL.Query().Get("workspace_id"))
		defer h.Unsubscribe(ch)

		// Initial ping so clients know the stream is live.
		_, _ = fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
		flusher.Flush()

		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_, _ = fmt.Fprintf(w, "data: %s\n\n", string(msg))
				flusher.Flush()
			}
		}
	}
}

var _ workflow.Publisher = (*SSEHub)(nil)
