// Package workflow is the task lifecycle engine: it validates every mutation,
// writes it through the store, appends exactly one activity per mutation and
// fans assignments and @mentions out as per-agent notifications.
package workflow

import (
	"context"
	"log/slog"
	"time"

	mcotel "github.com/ankittk/missionctl/internal/otel"
	"github.com/ankittk/missionctl/internal/store"
)

// Options selects engine behaviour. See DefaultOptions.
type Options struct {
	Profile string
	// Transactional runs each multi-write operation inside one store transaction.
	Transactional bool
	// SilentNotFound turns operations on missing entities into no-ops instead of ErrNotFound.
	SilentNotFound bool
	// DedupeMentions sends at most one mention notification per agent per message.
	DedupeMentions bool
}

// DefaultOptions returns the rich profile with transactional writes.
func DefaultOptions() Options {
	return Options{Profile: ProfileRich, Transactional: true}
}

// Engine executes task lifecycle operations against a Store.
type Engine struct {
	Store     store.Store
	Profile   Profile
	Publisher Publisher
	Logger    *slog.Logger
	// Now is the clock for every created_at/updated_at; defaults to time.Now.
	Now func() time.Time

	Transactional  bool
	SilentNotFound bool
	DedupeMentions bool
}

// New returns an engine over st configured by opts.
func New(st store.Store, opts Options) (*Engine, error) {
	p, err := ProfileByName(opts.Profile)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Store:          st,
		Profile:        p,
		Transactional:  opts.Transactional,
		SilentNotFound: opts.SilentNotFound,
		DedupeMentions: opts.DedupeMentions,
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) profile() Profile {
	if e.Profile.Name == "" {
		return Rich
	}
	return e.Profile
}

// write runs fn in a store transaction, or directly against the store when the
// engine is not transactional (a failure then leaves earlier writes in place).
func (e *Engine) write(ctx context.Context, fn func(st store.Store) error) error {
	if e.Transactional {
		return e.Store.WithTx(ctx, fn)
	}
	return fn(e.Store)
}

// appendActivity stamps and inserts a, returning the stored record.
func (e *Engine) appendActivity(ctx context.Context, st store.Store, a store.Activity) (store.Activity, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.now()
	}
	a.ID = store.NewID()
	if _, err := st.InsertActivity(ctx, a); err != nil {
		return a, err
	}
	return a, nil
}

// committed records metrics and publishes ev once its writes are durable.
func (e *Engine) committed(ctx context.Context, ev *Event) {
	if ev == nil {
		return
	}
	if ev.Activity != nil {
		mcotel.RecordActivity(ctx, ev.Activity.Type)
	}
	e.logger().Debug("mutation committed", "type", ev.Type, "workspace", ev.WorkspaceID, "task", ev.TaskID, "agent", ev.AgentID)
	e.publish(ctx, ev)
}

// TaskCounts returns the number of tasks per status across all workspaces.
func (e *Engine) TaskCounts(ctx context.Context) map[string]int64 {
	out := make(map[string]int64)
	for _, s := range e.profile().TaskStatuses {
		out[s] = 0
	}
	tasks, err := e.Store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		e.logger().Warn("count tasks", "err", err)
		return out
	}
	for _, t := range tasks {
		out[t.Status]++
	}
	return out
}

func ptr[T any](v T) *T { return &v }
