package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Auth API server.

On start-up the clients listed in CLIENTS_FILE are provisioned (with
DATABASE_CLEAR_ON_START=true all stored data is dropped first) and a
background sweeper removes expired refresh tokens every
TOKEN_SWEEP_INTERVAL_MINUTES.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies the command line overrides to the web config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolveServeHostPort(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	authSvc, err := newAuthService(cfg, store)
	if err != nil {
		return err
	}
	bioSvc, err := newBiometricsService(cfg, store)
	if err != nil {
		return err
	}

	clients, err := config.LoadClients(cfg.ClientsFile)
	if err != nil {
		return err
	}
	if err := authSvc.Provision(ctx, clients, cfg.Database.ClearOnStart); err != nil {
		return err
	}

	if cfg.Tokens.SweepInterval > 0 {
		go auth.NewSweeper(store).Run(ctx, cfg.Tokens.SweepInterval)
	}

	server := web.NewServer(cfg, web.Services{
		Auth:       authSvc,
		Biometrics: bioSvc,
		Employees:  store,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Auth on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
