// Package cmd implements the sandboxctl command tree, restructured from
// the teacher's cmd/omega/main.go single-binary startup (banner print,
// env-driven config, log.Fatalf on fatal init error) onto a cobra
// command tree, following the pack's own cmd/meow/cmd/root.go shape
// (package-level *cobra.Command vars, an init() wiring flags, a single
// exported Execute()).
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sandboxctl",
	Short: "Run and inspect Sandbox Module Execution Core modules",
	Long: `sandboxctl drives declarative agent-simulation modules: it
validates module documents, runs them against an agent in batch or
interactive mode, and serves the interactive session WebSocket API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}
