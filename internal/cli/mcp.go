package cli

import (
	"errors"
	"fmt"

	"github.com/ankittk/missionctl/internal/capabilities"
	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/ankittk/missionctl/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio, acting as one agent",
		Long: "Runs a Model Context Protocol server on stdin/stdout. Every tool call acts as --agent:\n" +
			"messages are sent by it, notifications are its own and tasks are scoped to its workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return errors.New("--agent is required")
			}
			home, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			logger := daemon.NewLogger(cfg.Log, cmd.ErrOrStderr())
			st, err := daemon.OpenStore(home, cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			eng, err := daemon.NewEngine(st, cfg.Engine, logger)
			if err != nil {
				return err
			}
			if a, err := eng.GetAgent(cmd.Context(), agent); err != nil {
				return err
			} else if a == nil {
				return fmt.Errorf("agent %s not found", agent)
			}

			sinks := capabilities.Build(daemon.SinkOptions(cfg.Sinks), logger)
			defer func() { _ = sinks.Close() }()
			eng.Publisher = sinks

			logger.Info("mcp server starting", "agent", agent)
			return mcp.NewServer(eng, agent, cmd.Root().Version).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Agent ID the tools act as")
	return cmd
}
