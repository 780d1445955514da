package cli

import (
	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			return daemon.StartForeground(cmd.Context(), opts)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}
