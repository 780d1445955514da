package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

func TestSlugify(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"Squad":             "squad",
		"  Night Shift  ":   "night-shift",
		"R&D / Ops 2":       "r-d-ops-2",
		"Équipe Été":        "équipe-été",
		"---":               "workspace",
		"":                  "workspace",
		"already-a-slug-42": "already-a-slug-42",
	} {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetWorkspace_byIDOrSlug(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	first, err := eng.CreateWorkspace(ctx, "Squad", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	second, err := eng.CreateWorkspace(ctx, "squad!", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	for ref, want := range map[string]string{first: first, "squad": first, second: second, "squad-2": second} {
		w, err := eng.GetWorkspace(ctx, ref)
		if err != nil || w == nil || w.ID != want {
			t.Fatalf("GetWorkspace(%q): %+v %v, want %s", ref, w, err, want)
		}
	}
	if _, err := eng.GetWorkspace(ctx, "squad-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown slug: got %v", err)
	}
}

func TestUpdateWorkspace(t *testing.T) {
	t.Parallel()
	eng, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	ws := mustWorkspace(t, eng)

	if err := eng.UpdateWorkspace(ctx, ws, WorkspaceUpdate{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("no fields: got %v", err)
	}
	blank := "  "
	if err := eng.UpdateWorkspace(ctx, ws, WorkspaceUpdate{Name: &blank}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("blank name: got %v", err)
	}
	name, desc := "Ops Center", "runs the night shift"
	if err := eng.UpdateWorkspace(ctx, ws, WorkspaceUpdate{Name: &name, Description: &desc}); err != nil {
		t.Fatalf("UpdateWorkspace: %v", err)
	}
	if err := eng.UpdateWorkspace(ctx, "missing", WorkspaceUpdate{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing workspace: got %v", err)
	}

	w, err := eng.GetWorkspace(ctx, ws)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if w.Name != name || w.Description == nil || *w.Description != desc || w.Slug != "ops" {
		t.Fatalf("updated workspace: %+v", w)
	}
	acts := activities(t, st, models.ActivityWorkspaceUpdated)
	if len(acts) != 1 || acts[0].Message != "Workspace updated: Ops Center" {
		t.Fatalf("workspace_updated activities: %+v", acts)
	}
}

func TestDeleteWorkspace(t *testing.T) {
	t.Parallel()
	eng, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	def, err := eng.CreateWorkspace(ctx, "Default", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if err := eng.DeleteWorkspace(ctx, def); !errors.Is(err, ErrInvalid) {
		t.Fatalf("default workspace: got %v", err)
	}

	busy := mustWorkspace(t, eng)
	mustAgent(t, eng, busy, "Jarvis")
	if err := eng.DeleteWorkspace(ctx, busy); !errors.Is(err, ErrInvalid) {
		t.Fatalf("workspace with agents: got %v", err)
	}
	withTask, err := eng.CreateWorkspace(ctx, "tasks only", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	mustTask(t, eng, withTask, "keep me")
	if err := eng.DeleteWorkspace(ctx, withTask); !errors.Is(err, ErrInvalid) {
		t.Fatalf("workspace with tasks: got %v", err)
	}

	empty, err := eng.CreateWorkspace(ctx, "scratch", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if _, err := eng.CreateDocument(ctx, NewDocument{WorkspaceID: empty, CreatedBy: "ops", Title: "notes", Content: "x"}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := eng.DeleteWorkspace(ctx, empty); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}
	if w, err := st.GetWorkspace(ctx, empty); err != nil || w != nil {
		t.Fatalf("workspace after delete: %+v %v", w, err)
	}
	docs, err := st.ListDocuments(ctx, store.DocumentFilter{WorkspaceID: empty})
	if err != nil || len(docs) != 0 {
		t.Fatalf("documents after delete: %v %d", err, len(docs))
	}
	if err := eng.DeleteWorkspace(ctx, empty); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice: got %v", err)
	}
	acts := activities(t, st, models.ActivityWorkspaceDeleted)
	if len(acts) != 1 || acts[0].Message != "Workspace deleted: scratch" {
		t.Fatalf("workspace_deleted activities: %+v", acts)
	}
}

func TestApproveTaskPlanning(t *testing.T) {
	t.Parallel()
	eng, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	ws := mustWorkspace(t, eng)
	task := mustTask(t, eng, ws, "Competitor research")

	if err := eng.ApproveTaskPlanning(ctx, task); err != nil {
		t.Fatalf("ApproveTaskPlanning: %v", err)
	}
	got, err := eng.GetTask(ctx, task)
	if err != nil || got.Status != models.StatusInbox {
		t.Fatalf("task after approve: %+v %v", got, err)
	}
	acts := activities(t, st, models.ActivityTaskStatusChanged)
	if len(acts) != 1 || acts[0].Message != "Planning complete, task moved to inbox" {
		t.Fatalf("status activities: %+v", acts)
	}
	if err := eng.ApproveTaskPlanning(ctx, task); !errors.Is(err, ErrInvalid) {
		t.Fatalf("approve outside planning: got %v", err)
	}
	if err := eng.ApproveTaskPlanning(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing task: got %v", err)
	}

	simple, _ := newTestEngine(t, simpleOptions())
	sws := mustWorkspace(t, simple)
	if err := simple.ApproveTaskPlanning(ctx, mustTask(t, simple, sws, "t")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("simple profile: got %v", err)
	}
}
