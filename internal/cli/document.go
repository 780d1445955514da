package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Manage workspace documents",
	}
	cmd.AddCommand(newDocumentAddCmd())
	cmd.AddCommand(newDocumentListCmd())
	return cmd
}

func newDocumentAddCmd() *cobra.Command {
	var (
		in       workflow.NewDocument
		taskID   string
		fromFile string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a document (content from --content or --file)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("workspace", in.WorkspaceID, "title", in.Title, "by", in.CreatedBy); err != nil {
				return err
			}
			if fromFile != "" {
				b, err := os.ReadFile(fromFile)
				if err != nil {
					return err
				}
				in.Content = string(b)
			}
			in.TaskID = optString(taskID)
			return withEngine(cmd, func(eng *workflow.Engine) error {
				id, err := eng.CreateDocument(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printed(cmd, map[string]string{"id": id}, func() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored document %q (%s)\n", in.Title, id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&in.WorkspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&taskID, "task", "", "Attach to this task")
	cmd.Flags().StringVar(&in.CreatedBy, "by", "", "Author (agent ID or name)")
	cmd.Flags().StringVar(&in.Title, "title", "", "Document title")
	cmd.Flags().StringVar(&in.Content, "content", "", "Document body")
	cmd.Flags().StringVar(&fromFile, "file", "", "Read the body from this file")
	cmd.Flags().StringVar(&in.Type, "type", "", "deliverable, research, protocol or notes (default notes)")
	return cmd
}

func newDocumentListCmd() *cobra.Command {
	var f store.DocumentFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents in a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.WorkspaceID == "" {
				return errors.New("--workspace is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				docs, err := eng.ListDocuments(cmd.Context(), f)
				if err != nil {
					return err
				}
				return printed(cmd, docs, func() {
					if len(docs) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
						return
					}
					for _, d := range docs {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s  %s [%s] by %s\n", d.ID, d.Title, d.Type, d.CreatedBy)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&f.TaskID, "task", "", "Only documents attached to this task")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var workspace string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Substring search over task titles, descriptions and activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspace == "" {
				return errors.New("--workspace is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				hits, err := eng.Search(cmd.Context(), workspace, args[0], limit)
				if err != nil {
					return err
				}
				return printed(cmd, hits, func() {
					if len(hits) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
						return
					}
					kind := color.New(color.FgBlue)
					for _, h := range hits {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s  %s\n", kind.Sprint(h.Kind), h.ID, h.Snippet)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max hits per kind (default 5)")
	return cmd
}
