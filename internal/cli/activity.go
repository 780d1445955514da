package cli

import (
	"fmt"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newActivityCmd() *cobra.Command {
	var f store.ActivityFilter
	cmd := &cobra.Command{
		Use:     "activity",
		Aliases: []string{"feed"},
		Short:   "Show the activity feed (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *workflow.Engine) error {
				acts, err := eng.ListActivities(cmd.Context(), f)
				if err != nil {
					return err
				}
				return printed(cmd, acts, func() {
					if len(acts) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No activity.")
						return
					}
					typ := color.New(color.FgMagenta)
					for _, a := range acts {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %-22s %s\n", shortTime(a.CreatedAt), typ.Sprint(a.Type), a.Message)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkspaceID, "workspace", "", "Only this workspace")
	cmd.Flags().StringVar(&f.Type, "type", "", "Only this activity type (e.g. task_created)")
	cmd.Flags().StringVar(&f.TaskID, "task", "", "Only activity about this task")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Max entries (default 100, capped at 1000)")
	return cmd
}
