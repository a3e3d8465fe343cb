package cmd

import (
	"TuneScope/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the TuneScope HTTP server",
	Long:  `Start the TuneScope HTTP server providing the audio analysis and track search API.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func runServer() {
	server.Start()
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
