package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ankittk/missionctl/internal/config"
	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, store and daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()
			ok := color.New(color.FgGreen).Sprint("ok  ")
			bad := color.New(color.FgRed).Sprint("FAIL")
			info := color.New(color.FgYellow).Sprint("--  ")

			failed := false
			check := func(name string, err error) {
				if err != nil {
					failed = true
					_, _ = fmt.Fprintf(out, "%s %s: %v\n", bad, name, err)
					return
				}
				_, _ = fmt.Fprintf(out, "%s %s\n", ok, name)
			}

			_, _ = fmt.Fprintf(out, "home: %s\n", home)
			cfg, err := config.Load(home)
			check("config "+config.Path(home), err)
			if err != nil {
				return errors.New("doctor checks failed")
			}
			_, _ = fmt.Fprintf(out, "%s profile=%s store=%s\n", info, cfg.Engine.Profile, cfg.Store.Driver)

			st, err := daemon.OpenStore(home, cfg.Store)
			check("store", err)
			if err == nil {
				_, err = st.ListWorkspaces(cmd.Context())
				check("store query", err)
				_ = st.Close()
			}

			status, err := daemon.Status(cmd.Context(), home)
			switch {
			case err != nil:
				check("daemon", err)
			case status.Running:
				_, _ = fmt.Fprintf(out, "%s daemon running (pid %d, addr %s)\n", ok, status.PID, status.Addr)
			default:
				_, _ = fmt.Fprintf(out, "%s daemon not running\n", info)
			}

			var sinks []string
			if cfg.Sinks.SlackWebhookURL != "" {
				sinks = append(sinks, "slack")
			}
			if len(cfg.Sinks.KafkaBrokers) > 0 && cfg.Sinks.KafkaTopic != "" {
				sinks = append(sinks, "kafka")
			}
			if len(sinks) == 0 {
				sinks = append(sinks, "none")
			}
			_, _ = fmt.Fprintf(out, "%s sinks: %s\n", info, strings.Join(sinks, ", "))
			if cfg.Auth.Password == "" {
				_, _ = fmt.Fprintf(out, "%s API password not set (HTTP API is open)\n", info)
			}

			if failed {
				return errors.New("doctor checks failed")
			}
			return nil
		},
	}
	return cmd
}
