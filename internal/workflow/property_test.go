package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
	"pgregory.net/rapid"
)

// Every accepted status change logs exactly one task_status_changed activity and
// the task ends in the last accepted status; rejected ones write nothing.
func TestProperty_statusChangesAreLogged(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultOptions())
	ctx := context.Background()
	statuses := append([]string{"bogus", "DONE", ""}, eng.profile().TaskStatuses...)

	rapid.Check(t, func(rt *rapid.T) {
		ws, err := eng.CreateWorkspace(ctx, "prop", nil)
		if err != nil {
			rt.Fatalf("CreateWorkspace: %v", err)
		}
		task, err := eng.CreateTask(ctx, NewTask{WorkspaceID: ws, Title: "t"})
		if err != nil {
			rt.Fatalf("CreateTask: %v", err)
		}
		seq := rapid.SliceOfN(rapid.SampledFrom(statuses), 1, 12).Draw(rt, "statuses")

		want := eng.profile().InitialStatus
		accepted := 0
		for _, s := range seq {
			err := eng.UpdateTaskStatus(ctx, task, s)
			if eng.profile().validTaskStatus(s) {
				if err != nil {
					rt.Fatalf("UpdateTaskStatus(%q): %v", s, err)
				}
				want = s
				accepted++
			} else if !errors.Is(err, ErrInvalid) {
				rt.Fatalf("UpdateTaskStatus(%q): want ErrInvalid, got %v", s, err)
			}
		}

		got, err := eng.GetTask(ctx, task)
		if err != nil || got.Status != want {
			rt.Fatalf("final status: %+v %v, want %s", got, err, want)
		}
		acts, err := eng.ListActivities(ctx, store.ActivityFilter{TaskID: task, Type: models.ActivityTaskStatusChanged, Limit: models.MaxActivityListLimit})
		if err != nil {
			rt.Fatalf("ListActivities: %v", err)
		}
		if len(acts) != accepted {
			rt.Fatalf("task_status_changed activities = %d, want %d", len(acts), accepted)
		}
	})
}

// A message notifies once per @Name token that matches an agent (case-sensitive),
// or once per distinct agent when mentions are deduplicated.
func TestProperty_mentionFanOut(t *testing.T) {
	for _, dedupe := range []bool{false, true} {
		opts := DefaultOptions()
		opts.DedupeMentions = dedupe
		eng, _ := newTestEngine(t, opts)
		ctx := context.Background()
		words := []string{"@Jarvis", "@Shuri", "@jarvis", "@Nobody", "hello", "@Jarvis,", "ship@it"}

		rapid.Check(t, func(rt *rapid.T) {
			ws, err := eng.CreateWorkspace(ctx, "prop", nil)
			if err != nil {
				rt.Fatalf("CreateWorkspace: %v", err)
			}
			agents := map[string]string{}
			for _, name := range []string{"Jarvis", "Shuri", "Friday"} {
				id, err := eng.CreateAgent(ctx, NewAgent{WorkspaceID: ws, Name: name, Role: "r"})
				if err != nil {
					rt.Fatalf("CreateAgent: %v", err)
				}
				agents[name] = id
			}
			task, err := eng.CreateTask(ctx, NewTask{WorkspaceID: ws, Title: "t"})
			if err != nil {
				rt.Fatalf("CreateTask: %v", err)
			}

			content := strings.Join(rapid.SliceOfN(rapid.SampledFrom(words), 1, 10).Draw(rt, "words"), " ")
			sender := agents["Friday"]
			if _, err := eng.PostMessage(ctx, NewMessage{Ref: task, SenderAgentID: &sender, Content: content}); err != nil {
				rt.Fatalf("PostMessage(%q): %v", content, err)
			}

			want := map[string]int{}
			for _, tok := range MentionTokens(content) {
				if _, ok := agents[tok]; ok {
					want[tok]++
				}
			}
			for name, id := range agents {
				notes, err := eng.ListNotifications(ctx, id, true)
				if err != nil {
					rt.Fatalf("ListNotifications: %v", err)
				}
				n := want[name]
				if dedupe && n > 1 {
					n = 1
				}
				if len(notes) != n {
					rt.Fatalf("dedupe=%v content %q: %s got %d notifications, want %d", dedupe, content, name, len(notes), n)
				}
				for _, note := range notes {
					if note.Delivered || !strings.HasPrefix(note.Content, "@"+name+": ") || !strings.HasSuffix(note.Content, "...") {
						rt.Fatalf("notification: %+v", note)
					}
				}
			}
		})
	}
}

// A task read back carries every field it was created with: title and
// description byte for byte, priority, assignee order and the due instant.
func TestProperty_taskRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t, simpleOptions())
	ctx := context.Background()
	ws, err := eng.CreateWorkspace(ctx, "roundtrip", nil)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	var agents []string
	for _, name := range []string{"Jarvis", "Shuri", "Friday", "Vision"} {
		agents = append(agents, mustAgent(t, eng, ws, name))
	}

	rapid.Check(t, func(rt *rapid.T) {
		title := rapid.StringMatching(`[ \t]{0,2}[A-Za-z0-9][A-Za-z0-9 ]{0,20}[ \t]{0,2}`).Draw(rt, "title")
		var desc *string
		if rapid.Bool().Draw(rt, "hasDesc") {
			d := rapid.StringMatching(`[ -~\n]{0,40}`).Draw(rt, "desc")
			desc = &d
		}
		priority := rapid.SampledFrom(models.Priorities).Draw(rt, "priority")
		perm := rapid.Permutation(agents).Draw(rt, "perm")
		assignees := perm[:rapid.IntRange(0, len(perm)).Draw(rt, "nAssignees")]
		var due *time.Time
		if rapid.Bool().Draw(rt, "hasDue") {
			zone := time.FixedZone("", rapid.IntRange(-12*60, 14*60).Draw(rt, "offsetMin")*60)
			d := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(rt, "sec"), rapid.Int64Range(0, 999_999_999).Draw(rt, "nsec")).In(zone)
			due = &d
		}

		id, err := eng.CreateTask(ctx, NewTask{WorkspaceID: ws, Title: title, Description: desc, Priority: priority, AssigneeIDs: assignees, DueDate: due})
		if err != nil {
			rt.Fatalf("CreateTask: %v", err)
		}
		got, err := eng.GetTask(ctx, id)
		if err != nil {
			rt.Fatalf("GetTask: %v", err)
		}
		if got.Title != title || got.Priority != priority {
			rt.Fatalf("title/priority: got %q %q, want %q %q", got.Title, got.Priority, title, priority)
		}
		if (desc == nil) != (got.Description == nil) || (desc != nil && *got.Description != *desc) {
			rt.Fatalf("description: got %v, want %v", got.Description, desc)
		}
		if strings.Join(got.AssigneeIDs, ",") != strings.Join(assignees, ",") {
			rt.Fatalf("assignees: got %v, want %v", got.AssigneeIDs, assignees)
		}
		if (due == nil) != (got.DueDate == nil) || (due != nil && !got.DueDate.Equal(*due)) {
			rt.Fatalf("due date: got %v, want %v", got.DueDate, due)
		}
	})
}
