package workflow

import (
	"context"
	"strings"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

// NewDocument is the input to CreateDocument.
type NewDocument struct {
	WorkspaceID string
	TaskID      *string
	CreatedBy   string
	Title       string
	Content     string
	Type        string // defaults to notes
}

// CreateDocument stores a document and logs document_created.
func (e *Engine) CreateDocument(ctx context.Context, in NewDocument) (string, error) {
	title := in.Title
	if strings.TrimSpace(title) == "" {
		return "", invalidf("document title is required")
	}
	if in.CreatedBy == "" {
		return "", invalidf("document author is required")
	}
	typ := in.Type
	if typ == "" {
		typ = models.DocumentNotes
	}
	if !models.Contains(models.DocumentTypes, typ) {
		return "", invalidf("document type %q not in %v", typ, models.DocumentTypes)
	}
	if in.TaskID != nil && *in.TaskID == "" {
		in.TaskID = nil
	}

	now := e.now()
	id := store.NewID()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		ws, err := st.GetWorkspace(ctx, in.WorkspaceID)
		if err != nil {
			return err
		}
		if ws == nil {
			return e.notFound("workspace", in.WorkspaceID)
		}
		if in.TaskID != nil {
			t, err := st.GetTask(ctx, *in.TaskID)
			if err != nil {
				return err
			}
			if t == nil || t.WorkspaceID != in.WorkspaceID {
				return invalidf("task %q is not in workspace %q", *in.TaskID, in.WorkspaceID)
			}
		}
		if _, err := st.InsertDocument(ctx, store.Document{
			ID:          id,
			WorkspaceID: in.WorkspaceID,
			TaskID:      in.TaskID,
			CreatedBy:   in.CreatedBy,
			Title:       title,
			Content:     in.Content,
			Type:        typ,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &in.WorkspaceID,
			AgentID:     &in.CreatedBy,
			TaskID:      in.TaskID,
			Type:        models.ActivityDocumentCreated,
			Message:     "Document created: " + title,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return "", err
	}
	if ev == nil {
		return "", nil
	}
	e.committed(ctx, ev)
	return id, nil
}

// ListDocuments returns a workspace's documents oldest first, optionally for one task.
func (e *Engine) ListDocuments(ctx context.Context, f store.DocumentFilter) ([]store.Document, error) {
	return e.Store.ListDocuments(ctx, f)
}
