package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/database/postgres"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/gymdesk/gymdesk/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the front-desk web server",
	Long: `Start the Gymdesk web server.
It serves the member registry and attendance API and hosts kiosk
check-in sessions that recognize members from uploaded camera frames.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides GYMDESK_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	store, err := postgres.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer store.Close()

	extractor := recognize.NewModelClient(cfg.Embedding.URL, cfg.Embedding.InputSize, cfg.Embedding.ScoreFloor)
	fmt.Printf("Warming up face model at %s...\n", cfg.Embedding.URL)
	if err := extractor.LoadModels(cmd.Context()); err != nil {
		fmt.Printf("Warning: model warmup failed: %v\n", err)
		fmt.Printf("Extraction will retry on first frame\n")
	}

	server := web.NewServer(cfg, store, extractor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Gymdesk on %s\n", cfg.Server.Addr)
	fmt.Println("Press Ctrl+C to stop")
	return server.Start()
}
