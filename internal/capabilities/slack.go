package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/ankittk/missionctl/pkg/models"
	"github.com/slack-go/slack"
)

// DefaultSlackEvents are the event types posted to Slack when SlackWebhook.Events is empty.
var DefaultSlackEvents = []string{
	models.ActivityTaskCreated,
	models.ActivityTaskAssigned,
	models.ActivityTaskStatusChanged,
	models.ActivityDocumentCreated,
}

// SlackWebhook sends messages to a Slack channel via incoming webhook URL.
type SlackWebhook struct {
	WebhookURL string
	Channel    string   // optional override
	Username   string   // optional
	Events     []string // optional; DefaultSlackEvents when empty
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	return slack.PostWebhookContext(ctx, s.WebhookURL, &slack.WebhookMessage{
		Text:     message,
		Channel:  s.Channel,
		Username: s.Username,
	})
}

// Publish posts events of the selected types. Others are skipped.
func (s SlackWebhook) Publish(ctx context.Context, ev workflow.Event) error {
	events := s.Events
	if len(events) == 0 {
		events = DefaultSlackEvents
	}
	if !models.Contains(events, ev.Type) || ev.Activity == nil {
		return nil
	}
	return s.Notify(ctx, slackText(ev))
}

func slackText(ev workflow.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*: %s", ev.Type, ev.Activity.Message)
	if len(ev.Notifications) > 0 {
		fmt.Fprintf(&b, " (%d notification(s))", len(ev.Notifications))
	}
	return b.String()
}
