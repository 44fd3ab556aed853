package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-auth",
	Short: "Face recognition identity service",
	Long: `Face Auth verifies who is standing in front of a camera. It stores
employees and their enrolled face embeddings, identifies people from a
single photo and protects its API with short-lived JWT access tokens and
single-use refresh tokens.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
