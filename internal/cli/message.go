package cli

import (
	"errors"
	"fmt"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "message",
		Aliases: []string{"msg"},
		Short:   "Post and read conversation messages",
	}
	cmd.AddCommand(newMessagePostCmd())
	cmd.AddCommand(newMessageListCmd())
	return cmd
}

func newMessagePostCmd() *cobra.Command {
	var (
		ref, from, content string
		attachments        []string
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a message; @Name mentions notify those agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("to", ref, "content", content); err != nil {
				return err
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				id, err := eng.PostMessage(cmd.Context(), workflow.NewMessage{
					Ref:           ref,
					SenderAgentID: optString(from),
					Content:       content,
					Attachments:   attachments,
				})
				if err != nil {
					return err
				}
				return printed(cmd, map[string]string{"id": id}, func() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Posted message %s\n", id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&ref, "to", "", "Conversation ID or task ID")
	cmd.Flags().StringVar(&from, "from", "", "Sender agent ID (omit for a system message)")
	cmd.Flags().StringVar(&content, "content", "", "Message text")
	cmd.Flags().StringSliceVar(&attachments, "attach", nil, "Attachment reference (repeatable)")
	return cmd
}

func newMessageListCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages of a conversation or task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ref == "" {
				return errors.New("--in is required")
			}
			return withEngine(cmd, func(eng *workflow.Engine) error {
				msgs, err := eng.ListMessages(cmd.Context(), ref)
				if err != nil {
					return err
				}
				return printed(cmd, msgs, func() {
					if len(msgs) == 0 {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
						return
					}
					for _, m := range msgs {
						sender := m.MessageType
						if m.SenderAgentID != nil {
							sender = *m.SenderAgentID
						}
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", shortTime(m.CreatedAt), color.New(color.FgCyan).Sprint(sender), m.Content)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&ref, "in", "", "Conversation ID or task ID")
	return cmd
}
