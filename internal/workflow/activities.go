package workflow

import (
	"context"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/pkg/models"
)

// ListActivities returns activities newest first. A non-positive limit means
// DefaultActivityListLimit; larger limits are capped at MaxActivityListLimit.
func (e *Engine) ListActivities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error) {
	if f.Type != "" && !models.Contains(models.ActivityTypes, f.Type) {
		return nil, invalidf("activity type %q not in %v", f.Type, models.ActivityTypes)
	}
	f.Limit = clampLimit(f.Limit)
	return e.Store.ListActivities(ctx, f)
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return models.DefaultActivityListLimit
	case n > models.MaxActivityListLimit:
		return models.MaxActivityListLimit
	default:
		return n
	}
}
