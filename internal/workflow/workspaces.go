package workflow

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

// CreateWorkspace creates a workspace with a unique slug derived from its name
// and logs workspace_created.
func (e *Engine) CreateWorkspace(ctx context.Context, name string, description *string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", invalidf("workspace name is required")
	}
	now := e.now()
	id := store.NewID()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		slug, err := uniqueSlug(ctx, st, Slugify(name))
		if err != nil {
			return err
		}
		if _, err := st.InsertWorkspace(ctx, store.Workspace{ID: id, Name: name, Slug: slug, Description: description, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &id,
			Type:        models.ActivityWorkspaceCreated,
			Message:     "Workspace created: " + name,
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
	e.committed(ctx, ev)
	return id, nil
}

// ListWorkspaces returns every workspace with its agent and task counts.
func (e *Engine) ListWorkspaces(ctx context.Context) ([]store.Workspace, error) {
	return e.Store.ListWorkspaces(ctx)
}

// GetWorkspace looks ref up as an id, then as a slug.
func (e *Engine) GetWorkspace(ctx context.Context, ref string) (*store.Workspace, error) {
	w, err := e.Store.GetWorkspace(ctx, ref)
	if err != nil || w != nil {
		return w, err
	}
	w, err = e.Store.GetWorkspaceBySlug(ctx, ref)
	if err != nil || w != nil {
		return w, err
	}
	return nil, e.notFound("workspace", ref)
}

// WorkspaceUpdate is the input to UpdateWorkspace. Nil fields are left unchanged.
type WorkspaceUpdate struct {
	Name        *string
	Description *string
}

// UpdateWorkspace renames or re-describes a workspace and logs workspace_updated.
// The slug stays as created.
func (e *Engine) UpdateWorkspace(ctx context.Context, id string, in WorkspaceUpdate) error {
	if in.Name == nil && in.Description == nil {
		return invalidf("no fields to update")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return invalidf("workspace name is required")
	}
	now := e.now()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		w, err := st.GetWorkspace(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return e.notFound("workspace", id)
		}
		if err := st.PatchWorkspace(ctx, id, store.WorkspacePatch{Name: in.Name, Description: in.Description, UpdatedAt: now}); err != nil {
			return err
		}
		name := w.Name
		if in.Name != nil {
			name = *in.Name
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &id,
			Type:        models.ActivityWorkspaceUpdated,
			Message:     "Workspace updated: " + name,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return err
	}
	e.committed(ctx, ev)
	return nil
}

// DeleteWorkspace removes an empty workspace and its documents, logging
// workspace_deleted. The default workspace and any workspace that still has
// agents or tasks are refused with ErrInvalid.
func (e *Engine) DeleteWorkspace(ctx context.Context, id string) error {
	now := e.now()
	var ev *Event
	err := e.write(ctx, func(st store.Store) error {
		w, err := st.GetWorkspace(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return e.notFound("workspace", id)
		}
		if w.Slug == models.DefaultWorkspaceSlug {
			return invalidf("cannot delete the default workspace")
		}
		if w.TaskCount > 0 || w.AgentCount > 0 {
			return invalidf("workspace %q still has %d tasks and %d agents", w.Name, w.TaskCount, w.AgentCount)
		}
		if err := st.DeleteWorkspace(ctx, id); err != nil {
			return err
		}
		a, err := e.appendActivity(ctx, st, store.Activity{
			WorkspaceID: &id,
			Type:        models.ActivityWorkspaceDeleted,
			Message:     "Workspace deleted: " + w.Name,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		ev = eventFor(a, nil)
		return nil
	})
	if err != nil {
		return err
	}
	e.committed(ctx, ev)
	return nil
}

// Slugify lowercases name and joins its letter and digit runs with '-'.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "workspace"
	}
	return b.String()
}

// uniqueSlug returns base, or base-2, base-3... when taken.
func uniqueSlug(ctx context.Context, st store.Store, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		w, err := st.GetWorkspaceBySlug(ctx, slug)
		if err != nil {
			return "", err
		}
		if w == nil {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}
