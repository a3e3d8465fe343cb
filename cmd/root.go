package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tunescope",
	Short: "TuneScope is an audio analysis and metadata search service.",
	Run: func(cmd *cobra.Command, args []string) {
		// Default to serving when no subcommand is given.
		runServer()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
