package capabilities

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ankittk/missionctl/internal/workflow"
)

// Async decouples a slow publisher (network sinks) from the request path. Events
// are queued and delivered by one goroutine; when the queue is full the event is
// dropped and logged.
type Async struct {
	next    workflow.Publisher
	queue   chan workflow.Event
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery goroutine. Call Close to drain and stop it.
func NewAsync(next workflow.Publisher, buffer int, timeout time.Duration, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{next: next, queue: make(chan workflow.Event, buffer), timeout: timeout, logger: logger, done: make(chan struct{})}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, ev workflow.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- ev:
	default:
		a.logger.Warn("sink queue full, dropping event", "type", ev.Type)
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, ev); err != nil {
			a.logger.Warn("sink delivery failed", "type", ev.Type, "err", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}
