package cli

import (
	"os"

	"github.com/ankittk/missionctl/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	var homeOverride string

	cmd := &cobra.Command{
		Use:          "missionctl",
		Short:        "missionctl: mission control for a squad of AI agents",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override missionctl home directory (default: ~/.missionctl, env: MISSIONCTL_HOME)")
	cmd.PersistentFlags().Bool("json", false, "Print results as JSON")
	cmd.PersistentFlags().String("log-level", "", "Log level for this command: debug, info, warn or error (default from config)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newWorkspaceCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newMessageCmd())
	cmd.AddCommand(newActivityCmd())
	cmd.AddCommand(newNotificationCmd())
	cmd.AddCommand(newDocumentCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRPCCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newApikeyCmd())
	cmd.AddCommand(newNukeCmd())

	// Hidden internal subcommand used by `missionctl start` for background mode.
	cmd.AddCommand(newDaemonCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
