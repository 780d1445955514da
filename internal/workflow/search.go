package workflow

import (
	"context"
	"strings"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

// Search kinds.
const (
	SearchKindTask     = "task"
	SearchKindActivity = "activity"
)

// Search returns case-insensitive substring matches over task titles and
// descriptions and activity messages, at most limit of each kind. Results keep
// store order; there is no ranking.
func (e *Engine) Search(ctx context.Context, workspaceID, query string, limit int) ([]models.SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.SearchResult{}
	if q == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}

	tasks, err := e.Store.ListTasks(ctx, store.TaskFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	n := 0
	for _, t := range tasks {
		if n == limit {
			break
		}
		desc := ""
		if t.Description != nil {
			desc = *t.Description
		}
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(desc), q) {
			continue
		}
		out = append(out, models.SearchResult{Kind: SearchKindTask, ID: t.ID, Title: t.Title, Snippet: snippet(desc)})
		n++
	}

	acts, err := e.Store.ListActivities(ctx, store.ActivityFilter{WorkspaceID: workspaceID, Limit: models.MaxActivityListLimit})
	if err != nil {
		return nil, err
	}
	n = 0
	for _, a := range acts {
		if n == limit {
			break
		}
		if !strings.Contains(strings.ToLower(a.Message), q) {
			continue
		}
		out = append(out, models.SearchResult{Kind: SearchKindActivity, ID: a.ID, Title: a.Type, Snippet: snippet(a.Message)})
		n++
	}
	return out, nil
}

func snippet(s string) string {
	const snippetRunes = 80
	r := []rune(s)
	if len(r) <= snippetRunes {
		return s
	}
	return string(r[:snippetRunes]) + "…"
}
