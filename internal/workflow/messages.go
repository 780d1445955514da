package workflow

import (
	"context"
	"regexp"
	"strings"
	"time"

	mcotel "github.com/ankittk/missionctl/internal/otel"
	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// NewMessage is the input to PostMessage. Ref is a conversation id or a task id.
type NewMessage struct {
	Ref           string
	SenderAgentID *string
	Content       string
	Attachments   []string
}

// PostMessage appends a message to a conversation (or to a task's conversation),
// logs message_sent and notifies every agent named by an @mention.
func (e *Engine) PostMessage(ctx context.Context, in NewMessage) (string, error) {
	if strings.TrimSpace(in.Ref) == "" {
		return "", invalidf("conversation or task id is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", invalidf("message content is required")
	}
	if in.SenderAgentID != nil && *in.SenderAgentID == "" {
		in.SenderAgentID = nil
	}
	tokens := MentionTokens(in.Content)

	now := e.now()
	id := store.NewID()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		conv, err := e.resolveConversation(ctx, st, in.Ref, true, now)
		if err != nil {
			return err
		}
		if conv == nil {
			return e.notFound("conversation or task", in.Ref)
		}
		if in.SenderAgentID != nil {
			sender, err := st.GetAgent(ctx, *in.SenderAgentID)
			if err != nil {
				return err
			}
			if sender == nil || sender.WorkspaceID != conv.WorkspaceID {
				return invalidf("sender %q is not in workspace %q", *in.SenderAgentID, conv.WorkspaceID)
			}
		}
		if _, err := st.InsertMessage(ctx, store.Message{
			ID:             id,
			ConversationID: conv.ID,
			TaskID:         conv.TaskID,
			SenderAgentID:  in.SenderAgentID,
			Content:        in.Content,
			MessageType:    models.MessageText,
			Attachments:    in.Attachments,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &conv.WorkspaceID,
			AgentID:     in.SenderAgentID,
			TaskID:      conv.TaskID,
			Type:        models.ActivityMessageSent,
			Message:     "Message posted",
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		notes, err := e.notifyMentions(ctx, st, conv, tokens, in.Content, now)
		if err != nil {
			return err
		}
		ev = eventFor(a, notes)
		return nil
	})
	if err != nil {
		return "", err
	}
	if ev == nil {
		return "", nil
	}
	mcotel.RecordMentions(ctx, len(tokens))
	mcotel.RecordNotifications(ctx, "mention", len(ev.Notifications))
	e.committed(ctx, ev)
	return id, nil
}

// notifyMentions creates one notification per (token, matching agent) pair.
// With DedupeMentions each agent is notified at most once.
func (e *Engine) notifyMentions(ctx context.Context, st store.Store, conv *store.Conversation, tokens []string, content string, now time.Time) ([]store.Notification, error) {
	var notes []store.Notification
	seen := make(map[string]bool)
	snippet := MentionSnippet(content)
	for _, name := range tokens {
		agents, err := st.FindAgentsByName(ctx, conv.WorkspaceID, name)
		if err != nil {
			return nil, err
		}
		for _, ag := range agents {
			if e.DedupeMentions {
				if seen[ag.ID] {
					continue
				}
				seen[ag.ID] = true
			}
			n := store.Notification{
				ID:          store.NewID(),
				WorkspaceID: conv.WorkspaceID,
				AgentID:     ag.ID,
				Content:     "@" + ag.Name + ": " + snippet + "...",
				TaskID:      conv.TaskID,
				CreatedAt:   now,
			}
			if _, err := st.InsertNotification(ctx, n); err != nil {
				return nil, err
			}
			notes = append(notes, n)
		}
	}
	return notes, nil
}

// ListMessages returns a conversation's messages oldest first. ref may be a
// conversation id or a task id; a task without a conversation yet has none.
func (e *Engine) ListMessages(ctx context.Context, ref string) ([]store.Message, error) {
	conv, err := e.resolveConversation(ctx, e.Store, ref, false, e.now())
	if err != nil {
		return nil, err
	}
	if conv == nil {
		if t, err := e.Store.GetTask(ctx, ref); err != nil {
			return nil, err
		} else if t != nil {
			return []store.Message{}, nil
		}
		return nil, e.notFound("conversation or task", ref)
	}
	return e.Store.ListMessages(ctx, conv.ID)
}

// resolveConversation looks ref up as a conversation id, then as a task id. When
// create is set, a task without a conversation gets one.
func (e *Engine) resolveConversation(ctx context.Context, st store.Store, ref string, create bool, now time.Time) (*store.Conversation, error) {
	c, err := st.GetConversation(ctx, ref)
	if err != nil || c != nil {
		return c, err
	}
	t, err := st.GetTask(ctx, ref)
	if err != nil || t == nil {
		return nil, err
	}
	c, err = st.GetConversationByTask(ctx, t.ID)
	if err != nil || c != nil || !create {
		return c, err
	}
	conv := store.Conversation{
		ID:          store.NewID(),
		WorkspaceID: t.WorkspaceID,
		Type:        models.ConversationTask,
		TaskID:      &t.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := st.InsertConversation(ctx, conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// MentionTokens returns the names captured by @word tokens in content, in order,
// duplicates included.
func MentionTokens(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// MentionSnippet returns the first MentionSnippetRunes runes of content.
func MentionSnippet(content string) string {
	r := []rune(content)
	if len(r) > models.MentionSnippetRunes {
		r = r[:models.MentionSnippetRunes]
	}
	return string(r)
}
