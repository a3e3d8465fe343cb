package cmd

import (
	"fmt"
	"log"

	"TuneScope/config"
	"TuneScope/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenOwnerID  int64
	tokenUsername string
)

// Identity is issued by the upstream auth service in production. This command
// mints a local token against the configured secret for development and testing.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		token, err := auth.GenerateToken(cfg.JWTSecret, tokenOwnerID, tokenUsername)
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Int64Var(&tokenOwnerID, "owner", 1, "owner ID to embed in the token")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "dev", "username to embed in the token")
}
