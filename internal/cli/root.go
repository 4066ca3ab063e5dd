// Package cli implements the reloop command-line interface using Cobra.
// Each subcommand maps to an engine capability (serve, submit, stats, etc.).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reloop",
	Short: "ReLoop — recycling rewards engine",
	Long: `ReLoop turns recycling activity into points, CO2 impact, mission
progress, and badges. One binary: API server, expiry sweeper, and admin CLI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
