package cli

import (
	"errors"
	"fmt"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}
	cmd.AddCommand(newAgentAddCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentStatusCmd())
	cmd.AddCommand(newAgentHeartbeatCmd())
	return cmd
}

func newAgentAddCmd() *cobra.Command {
	var in workflow.NewAgent
	var description string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an agent to a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("workspace", in.WorkspaceID, "name", in.Name, "role", in.Role); err != nil {
				return err
			}
			in.Description = optString(description)
			return withEngine(cmd, func(eng *workflow.Engine) error {
				id, err := eng.CreateAgent(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printed(cmd, map[string]string{"id": id}, func() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added agent %q (%s, role=%s)\n", in.Name, id, in.Role)
				})
			})
		},
	}
	cmd.Flags().StringVar(&in.WorkspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&in.Name, "name", "", "Agent name (used for @mentions)")
	cmd.Flags().StringVar(&in.Role, "role", "", "Agent role")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringVar(&in.AvatarEmoji, "emoji", "", "Avatar emoji")
	cmd.Flags().BoolVar(&in.IsMaster, "master", false, "Mark as the squad lead")
	cmd.Flags().StringVar(&in.SessionKey, "session-key", "", "External session key")
	return cmd
}

func newAgentListCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspace == "" {
				return errors.New("--workspace is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				agents, err := eng.ListAgents(cmd.Context(), workspace)
				if err != nil {
					return err
				}
				return printed(cmd, agents, func() {
					if len(agents) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No agents.")
						return
					}
					for _, a := range agents {
						lead := ""
						if a.IsMaster {
							lead = " [lead]"
						}
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s  %s (%s) %s%s\n", a.ID, a.Name, a.Role, statusColor(a.Status), lead)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace ID")
	return cmd
}

func newAgentStatusCmd() *cobra.Command {
	var id, status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set an agent's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("id", id, "status", status); err != nil {
				return err
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				if err := eng.UpdateAgentStatus(cmd.Context(), id, status); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Agent %s status set to %s\n", id, statusColor(status))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Agent ID")
	cmd.Flags().StringVar(&status, "status", "", "New status (rich: standby, working, offline; simple: idle, active, blocked)")
	return cmd
}

func newAgentHeartbeatCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Record a heartbeat for an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				if err := eng.Heartbeat(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Heartbeat recorded for %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Agent ID")
	return cmd
}
