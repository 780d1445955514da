package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/ankittk/missionctl/internal/store"
)

// EventNotificationDelivered is published when a notification is acknowledged.
// It has no activity behind it.
const EventNotificationDelivered = "notification_delivered"

// Event describes one committed mutation. Type is the activity type, or
// EventNotificationDelivered.
type Event struct {
	Type          string               `json:"type"`
	WorkspaceID   string               `json:"workspace_id,omitempty"`
	TaskID        string               `json:"task_id,omitempty"`
	AgentID       string               `json:"agent_id,omitempty"`
	Activity      *store.Activity      `json:"activity,omitempty"`
	Notifications []store.Notification `json:"notifications,omitempty"`
	At            time.Time            `json:"at"`
}

// Publisher receives events after the mutation has been committed. Errors are
// logged by the engine and never fail the operation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// FanOut publishes to every publisher and joins their errors.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) publish(ctx context.Context, ev *Event) {
	if ev == nil || e.Publisher == nil {
		return
	}
	if err := e.Publisher.Publish(ctx, *ev); err != nil {
		e.logger().Warn("publish event", "type", ev.Type, "err", err)
	}
}

func eventFor(a store.Activity, notes []store.Notification) *Event {
	ev := &Event{Type: a.Type, Activity: &a, Notifications: notes, At: a.CreatedAt}
	if a.WorkspaceID != nil {
		ev.WorkspaceID = *a.WorkspaceID
	}
	if a.TaskID != nil {
		ev.TaskID = *a.TaskID
	}
	if a.AgentID != nil {
		ev.AgentID = *a.AgentID
	}
	return ev
}
