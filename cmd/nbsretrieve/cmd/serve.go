package cmd

import (
	"github.com/spf13/cobra"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/mcp"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start a Model Context Protocol server exposing the search and
rewrite_query tools. Stdout carries JSON-RPC only; logs go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := loadConfig(global)
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			srv, err := mcp.NewServer(a.engine)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol (stdio)")
	return cmd
}
