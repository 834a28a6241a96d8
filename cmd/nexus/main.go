// Command nexus runs the multi-source query orchestrator: an HTTP server
// that accepts a natural-language query, decides which configured data
// providers are relevant, fans out tool-scoped sub-queries to each, and
// synthesizes the results into a single answer.
//
// # Basic Usage
//
// Start the server:
//
//	nexus serve --config orchestrator.yaml
//
// # Environment Variables
//
//   - ORCHESTRATOR_CONFIG: path to the configuration file.
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY: reasoner credentials.
//   - SLACK_BOT_TOKEN: chat connector credential.
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY: storage connector credentials.
//   - POSTGRES_DSN: db connector credential.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nexus",
		Short:        "Multi-source query orchestrator",
		Long:         `nexus plans, fans out, and synthesizes natural-language queries across configured data providers.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("ORCHESTRATOR_CONFIG"); env != "" {
		return env
	}
	return ""
}
