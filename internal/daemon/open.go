package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ankittk/missionctl/internal/capabilities"
	"github.com/ankittk/missionctl/internal/config"
	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/store/postgres"
	"github.com/ankittk/missionctl/internal/store/sqlite"
	"github.com/ankittk/missionctl/internal/workflow"
)

// OpenStore opens the store selected by cfg.Driver: "sqlite" (pure Go, default),
// "sqlite3" (cgo) or "postgres". SQLite stores live under home unless DSN is set.
func OpenStore(home string, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return store.OpenWithOptions(store.OpenOptions{Driver: "sqlite", Home: dsnOrHome(home, cfg.DSN), DSN: cfg.DSN})
	case "sqlite3":
		if cfg.DSN != "" {
			return sqlite.OpenDSN(cfg.DSN)
		}
		return sqlite.Open(home)
	case "postgres":
		return postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// dsnOrHome clears home when an explicit DSN should win.
func dsnOrHome(home, dsn string) string {
	if dsn != "" {
		return ""
	}
	return home
}

// NewEngine builds a workflow engine over st from cfg.
func NewEngine(st store.Store, cfg config.EngineConfig, logger *slog.Logger) (*workflow.Engine, error) {
	eng, err := workflow.New(st, workflow.Options{
		Profile:        cfg.Profile,
		Transactional:  cfg.Transactional,
		SilentNotFound: cfg.SilentNotFound,
		DedupeMentions: cfg.DedupeMentions,
	})
	if err != nil {
		return nil, err
	}
	eng.Logger = logger
	return eng, nil
}

// SinkOptions maps the sinks section of the config onto capability options.
func SinkOptions(cfg config.SinksConfig) capabilities.Options {
	return capabilities.Options{
		SlackWebhookURL: cfg.SlackWebhookURL,
		SlackChannel:    cfg.SlackChannel,
		SlackUsername:   cfg.SlackUsername,
		SlackEvents:     cfg.SlackEvents,
		KafkaBrokers:    cfg.KafkaBrokers,
		KafkaTopic:      cfg.KafkaTopic,
	}
}

// NewLogger returns a slog logger writing cfg.Format ("json" or text) at cfg.Level.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug/info/warn/error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
