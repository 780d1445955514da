package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/ankittk/missionctl/pkg/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskAssignCmd())
	cmd.AddCommand(newTaskApproveCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		in          workflow.NewTask
		description string
		due         string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task (optionally assigned)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("workspace", in.WorkspaceID, "title", in.Title); err != nil {
				return err
			}
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			in.Description = optString(description)
			in.DueDate = dueDate
			return withEngine(cmd, func(eng *workflow.Engine) error {
				id, err := eng.CreateTask(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printed(cmd, map[string]string{"id": id}, func() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %q (%s)\n", in.Title, id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&in.WorkspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&in.Title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "Priority: low, normal, high or urgent")
	cmd.Flags().StringSliceVar(&in.AssigneeIDs, "assignee", nil, "Assignee agent ID (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (RFC3339 or YYYY-MM-DD)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var f store.TaskFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.WorkspaceID == "" {
				return errors.New("--workspace is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				tasks, err := eng.ListTasks(cmd.Context(), f)
				if err != nil {
					return err
				}
				return printed(cmd, tasks, func() {
					if len(tasks) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
						return
					}
					for _, t := range tasks {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s  [%s] %s (%s)\n", t.ID, statusColor(t.Status), t.Title, t.Priority)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&f.Status, "status", "", "Only tasks in this status")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "Only tasks assigned to this agent")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Max tasks (0 = all)")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a task and its conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				ctx := cmd.Context()
				t, err := eng.GetTask(ctx, id)
				if err != nil {
					return err
				}
				if t == nil {
					return fmt.Errorf("task %s not found", id)
				}
				msgs, err := eng.ListMessages(ctx, id)
				if err != nil && !errors.Is(err, workflow.ErrNotFound) {
					return err
				}
				view := struct {
					*store.Task
					Messages []store.Message `json:"messages"`
				}{t, msgs}
				return printed(cmd, view, func() {
					out := cmd.OutOrStdout()
					_, _ = fmt.Fprintf(out, "%s %s\n", color.New(color.Bold).Sprint(t.Title), color.New(color.Faint).Sprint(t.ID))
					_, _ = fmt.Fprintf(out, "  status:    %s\n", statusColor(t.Status))
					_, _ = fmt.Fprintf(out, "  priority:  %s\n", t.Priority)
					if len(t.AssigneeIDs) > 0 {
						_, _ = fmt.Fprintf(out, "  assignees: %s\n", strings.Join(t.AssigneeIDs, ", "))
					}
					if t.Description != nil {
						_, _ = fmt.Fprintf(out, "  %s\n", *t.Description)
					}
					for _, m := range msgs {
						sender := "system"
						if m.SenderAgentID != nil {
							sender = *m.SenderAgentID
						}
						_, _ = fmt.Fprintf(out, "  %s %s: %s\n", shortTime(m.CreatedAt), color.New(color.FgCyan).Sprint(sender), m.Content)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Task ID")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var id, status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Move a task to a new status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("id", id, "status", status); err != nil {
				return err
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				if err := eng.UpdateTaskStatus(cmd.Context(), id, status); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s status set to %s\n", id, statusColor(status))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Task ID")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	return cmd
}

func newTaskAssignCmd() *cobra.Command {
	var id string
	var agents []string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Replace a task's assignees and notify the new ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || len(agents) == 0 {
				return errors.New("--id and at least one --agent are required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				if err := eng.AssignTask(cmd.Context(), id, agents); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Assigned task %s to %s\n", id, strings.Join(agents, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Task ID")
	cmd.Flags().StringSliceVar(&agents, "agent", nil, "Agent ID (repeatable)")
	return cmd
}

func newTaskApproveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Finish planning and move a task to the inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				if err := eng.ApproveTaskPlanning(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s status set to %s\n", id, statusColor(models.StatusInbox))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Task ID")
	return cmd
}
