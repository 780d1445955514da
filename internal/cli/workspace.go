package cli

import (
	"errors"
	"fmt"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/spf13/cobra"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}
	cmd.AddCommand(newWorkspaceAddCmd())
	cmd.AddCommand(newWorkspaceListCmd())
	cmd.AddCommand(newWorkspaceSeedCmd())
	cmd.AddCommand(newWorkspaceUpdateCmd())
	cmd.AddCommand(newWorkspaceDeleteCmd())
	return cmd
}

func newWorkspaceAddCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				id, err := eng.CreateWorkspace(cmd.Context(), name, optString(description))
				if err != nil {
					return err
				}
				return printed(cmd, map[string]string{"id": id}, func() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %q (%s)\n", name, id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Workspace name")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *workflow.Engine) error {
				wss, err := eng.ListWorkspaces(cmd.Context())
				if err != nil {
					return err
				}
				return printed(cmd, wss, func() {
					if len(wss) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No workspaces.")
						return
					}
					for _, ws := range wss {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s  %s (agents=%d tasks=%d)\n", ws.ID, ws.Name, ws.AgentCount, ws.TaskCount)
					}
				})
			})
		},
	}
	return cmd
}

func newWorkspaceUpdateCmd() *cobra.Command {
	var id, name, description string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rename or re-describe a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			var in workflow.WorkspaceUpdate
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("description") {
				in.Description = &description
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				ws, err := eng.GetWorkspace(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ws == nil {
					return fmt.Errorf("workspace %q not found", id)
				}
				if err := eng.UpdateWorkspace(cmd.Context(), ws.ID, in); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated workspace %s\n", ws.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Workspace ID or slug")
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func newWorkspaceDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a workspace that has no agents or tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				ws, err := eng.GetWorkspace(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ws == nil {
					return fmt.Errorf("workspace %q not found", id)
				}
				if err := eng.DeleteWorkspace(cmd.Context(), ws.ID); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted workspace %q (%s)\n", ws.Name, ws.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Workspace ID or slug")
	return cmd
}

func newWorkspaceSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo workspace (three agents and a starter task)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *workflow.Engine) error {
				id, err := eng.SeedDemo(cmd.Context())
				if err != nil {
					return err
				}
				return printed(cmd, map[string]string{"id": id}, func() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Demo workspace ready (%s)\n", id)
				})
			})
		},
	}
	return cmd
}
