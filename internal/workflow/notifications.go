package workflow

import (
	"context"

	"github.com/ankittk/missionctl/internal/store"
)

// ListUndelivered returns an agent's undelivered notifications in insertion order.
func (e *Engine) ListUndelivered(ctx context.Context, agentID string) ([]store.Notification, error) {
	return e.Store.ListNotifications(ctx, store.NotificationFilter{AgentID: agentID, UndeliveredOnly: true})
}

// ListNotifications returns an agent's notifications, delivered ones included when all is set.
func (e *Engine) ListNotifications(ctx context.Context, agentID string, all bool) ([]store.Notification, error) {
	return e.Store.ListNotifications(ctx, store.NotificationFilter{AgentID: agentID, UndeliveredOnly: !all})
}

// MarkDelivered flags a notification as delivered. It is idempotent, a missing id
// is not an error, and no activity is logged.
func (e *Engine) MarkDelivered(ctx context.Context, id string) error {
	n, err := e.Store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n == nil || n.Delivered {
		return nil
	}
	if err := e.Store.MarkNotificationDelivered(ctx, id); err != nil {
		return err
	}
	n.Delivered = true
	e.publish(ctx, &Event{
		Type:          EventNotificationDelivered,
		WorkspaceID:   n.WorkspaceID,
		AgentID:       n.AgentID,
		Notifications: []store.Notification{*n},
		At:            e.now(),
	})
	return nil
}
