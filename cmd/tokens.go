package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage stored refresh tokens",
}

var tokensSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired refresh tokens",
	RunE:  runTokensSweep,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensSweepCmd)
}

func runTokensSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := auth.NewSweeper(store).Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d expired refresh tokens\n", removed)
	return nil
}
