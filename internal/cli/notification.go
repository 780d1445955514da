package cli

import (
	"errors"
	"fmt"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newNotificationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notification",
		Aliases: []string{"notify"},
		Short:   "Read and acknowledge agent notifications",
	}
	cmd.AddCommand(newNotificationListCmd())
	cmd.AddCommand(newNotificationDeliverCmd())
	return cmd
}

func newNotificationListCmd() *cobra.Command {
	var agent string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's notifications (undelivered unless --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return errors.New("--agent is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				notes, err := eng.ListNotifications(cmd.Context(), agent, all)
				if err != nil {
					return err
				}
				return printed(cmd, notes, func() {
					if len(notes) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
						return
					}
					for _, n := range notes {
						mark := color.New(color.FgYellow).Sprint("●")
						if n.Delivered {
							mark = color.New(color.Faint).Sprint("○")
						}
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", mark, n.ID, n.Content)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Agent ID")
	cmd.Flags().BoolVar(&all, "all", false, "Include delivered notifications")
	return cmd
}

func newNotificationDeliverCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Mark a notification delivered",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				if err := eng.MarkDelivered(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Notification %s delivered\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Notification ID")
	return cmd
}
