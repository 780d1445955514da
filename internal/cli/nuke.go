package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ankittk/missionctl/internal/config"
	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newNukeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete the missionctl home: database, config and daemon files",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()

			if st, _ := daemon.Status(cmd.Context(), home); st.Running {
				return fmt.Errorf("missionctl is running (pid %d); run `missionctl stop` first", st.PID)
			}
			if !yes {
				_, _ = fmt.Fprintln(out, color.RedString("This permanently deletes every workspace, task and message in:"))
				_, _ = fmt.Fprintf(out, "  %s\n", home)
				_, _ = fmt.Fprint(out, `Type "delete everything" to confirm: `)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if strings.TrimSpace(line) != "delete everything" {
					_, _ = fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}
			if err := os.RemoveAll(home); err != nil {
				return fmt.Errorf("remove %s: %w", home, err)
			}
			_, _ = fmt.Fprintf(out, "Deleted %s\n", home)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
