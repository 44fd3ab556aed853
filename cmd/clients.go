package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage API clients",
}

var clientsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Provision the clients listed in CLIENTS_FILE",
	Long: `Store every client of the clients file with its hashed password.
Existing clients get their password replaced.

Examples:
  # Add or update clients
  face-auth clients sync

  # Drop all stored data (employees, biometrics, tokens) first
  face-auth clients sync --clear`,
	RunE: runClientsSync,
}

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.AddCommand(clientsSyncCmd)

	clientsSyncCmd.Flags().Bool("clear", false, "Remove all stored data before provisioning")
	clientsSyncCmd.Flags().String("file", "", "Clients file (overrides CLIENTS_FILE)")
}

func runClientsSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.ClientsFile
	if file := mustGetString(cmd, "file"); file != "" {
		path = file
	}

	clients, err := config.LoadClients(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	authSvc, err := newAuthService(cfg, store)
	if err != nil {
		return err
	}
	if err := authSvc.Provision(ctx, clients, mustGetBool(cmd, "clear")); err != nil {
		return err
	}

	fmt.Printf("Provisioned %d clients from %s\n", len(clients), path)
	return nil
}
