package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the orchestrator's
// HTTP server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the query orchestrator's HTTP server",
		Long: `Start the orchestrator with all configured providers and reasoner backend.

The server will:
1. Load configuration from the specified file (or defaults)
2. Wire provider connectors, cache, breaker, and rate limiter
3. Serve the agent query/detect/suggest HTTP surface

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  nexus serve

  # Start with a custom config file
  nexus serve --config /etc/nexus/orchestrator.yaml

  # Start with debug logging
  nexus serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
