package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ankittk/missionctl/internal/config"
	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// loadConfig reads home/config.yaml plus environment and applies --log-level.
func loadConfig(cmd *cobra.Command) (string, config.Config, error) {
	home := config.MustHomeFrom(cmd.Context())
	cfg, err := config.Load(home)
	if err != nil {
		return home, cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return home, cfg, nil
}

// openEngine opens an engine over the configured store. The returned close
// func releases the store.
func openEngine(cmd *cobra.Command) (*workflow.Engine, func(), error) {
	home, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := daemon.OpenStore(home, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	eng, err := daemon.NewEngine(st, cfg.Engine, daemon.NewLogger(cfg.Log, cmd.ErrOrStderr()))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return eng, func() { _ = st.Close() }, nil
}

// withEngine runs fn against a freshly opened engine.
func withEngine(cmd *cobra.Command, fn func(eng *workflow.Engine) error) error {
	eng, closeFn, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(eng)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printed writes v as JSON when --json is set, otherwise calls text.
func printed(cmd *cobra.Command, v any, text func()) error {
	if wantJSON(cmd) {
		return printJSON(cmd, v)
	}
	text()
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, "--"+pairs[i])
		}
	}
	if len(missing) > 0 {
		return errors.New(strings.Join(missing, ", ") + " required")
	}
	return nil
}

func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--due: expected RFC3339 or YYYY-MM-DD, got %q", s)
}

func shortTime(t time.Time) string {
	return t.Local().Format("Jan 02 15:04")
}

// statusColor tints a task or agent status for terminal output.
func statusColor(status string) string {
	switch status {
	case "done", "active", "working":
		return color.New(color.FgGreen).Sprint(status)
	case "blocked", "review":
		return color.New(color.FgYellow).Sprint(status)
	case "in_progress", "assigned":
		return color.New(color.FgCyan).Sprint(status)
	default:
		return status
	}
}
