// Package main provides the CLI entry point for the conductor agent
// runtime: an HTTP/SSE server that routes conversation turns through a
// bounded generate/tool-flow loop with human-in-the-loop tool approval.
//
// # Basic usage
//
// Start the server:
//
//	conductor serve --config conductor.yaml
//
// Drive the same runtime from a terminal, in-process, without a server:
//
//	conductor chat
//
// # Environment variables
//
// Configuration can be overridden via environment variables (see
// internal/config for the full list):
//
//   - CONDUCTOR_HOST, CONDUCTOR_HTTP_PORT, CONDUCTOR_METRICS_PORT
//   - CONDUCTOR_JWT_SECRET / JWT_SECRET
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the root command and its subcommands. Kept
// separate from main so tests can exercise the command tree directly.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "conductor",
		Short:        "conductor runs a multi-agent conversation loop behind an HTTP/SSE transport",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(), buildChatCmd(), buildVersionCmd())
	return root
}
