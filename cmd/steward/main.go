// Package main provides the CLI entry point for the Steward personal
// assistant.
//
// # Basic Usage
//
// Start an interactive chat:
//
//	steward chat --config steward.yaml
//
// Run the background service (scheduled workflows plus the metrics
// endpoint):
//
//	steward serve --config steward.yaml
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models and embeddings
//
// Configuration values may reference environment variables as ${VAR}; they
// are expanded before the YAML is parsed.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "steward",
		Short: "Steward - Personal AI assistant",
		Long: `Steward is a personal assistant with durable channel memory.

It runs an iteration-bounded agent loop against an LLM provider, dispatches
tool calls to registered capabilities, and maintains long-term memory through
background compaction, fact extraction, and semantic indexing.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildServeCmd(),
		buildWorkflowsCmd(),
	)
	return rootCmd
}
