package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersionCmd reports the build's version/commit/date, matching the
// ldflags-populated vars set in main.go.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "conductor %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
