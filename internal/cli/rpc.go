package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ankittk/missionctl/internal/rpc"
	"github.com/spf13/cobra"
)

func newRPCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc",
		Short: "Talk to a running daemon over gRPC",
	}
	cmd.AddCommand(newRPCMethodsCmd())
	cmd.AddCommand(newRPCCallCmd())
	return cmd
}

func newRPCMethodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the methods of the " + rpc.ServiceName + " service",
		RunE: func(cmd *cobra.Command, args []string) error {
			methods := rpc.Methods()
			return printed(cmd, methods, func() {
				for _, m := range methods {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), m)
				}
			})
		},
	}
	return cmd
}

func newRPCCallCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "call <Method> [json-args]",
		Short:   "Invoke a method with a JSON object of arguments",
		Example: `  missionctl rpc call ListTasks '{"workspace_id":"...","status":"inbox"}'`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &in); err != nil {
					return fmt.Errorf("args: %w", err)
				}
			}
			c, err := rpc.Dial(addr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			out, err := c.CallRaw(ctx, args[0], in)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3549", "Daemon gRPC address (see --rpc-addr on start)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Call timeout")
	return cmd
}
