package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/database/postgres"
	"github.com/gymdesk/gymdesk/internal/ledger"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/spf13/cobra"
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Run a headless check-in kiosk against a snapshot camera",
	Long: `Run the check-in loop without the web server. Frames are pulled
from an HTTP still-image camera endpoint (KIOSK_CAMERA_URL or --camera),
matched against the member gallery, and committed to the attendance log.
State changes are printed to the log.`,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(kioskCmd)

	kioskCmd.Flags().String("camera", "", "Snapshot camera URL (overrides KIOSK_CAMERA_URL)")
}

func runKiosk(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if camera, _ := cmd.Flags().GetString("camera"); camera != "" {
		cfg.Kiosk.CameraURL = camera
	}
	if cfg.Kiosk.CameraURL == "" {
		return errors.New("camera URL is required (KIOSK_CAMERA_URL or --camera)")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	store, err := postgres.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer store.Close()

	extractor := recognize.NewModelClient(cfg.Embedding.URL, cfg.Embedding.InputSize, cfg.Embedding.ScoreFloor)
	if err := extractor.LoadModels(cmd.Context()); err != nil {
		fmt.Printf("Warning: model warmup failed: %v\n", err)
	}

	svc := ledger.NewService(store)
	session := recognize.NewSession(
		recognize.SessionConfig{
			RequiredMatches: cfg.Kiosk.RequiredMatches,
			ScanInterval:    cfg.Kiosk.ScanInterval,
			SuccessHold:     cfg.Kiosk.SuccessHold,
			ErrorHold:       cfg.Kiosk.ErrorHold,
			SuffixLength:    cfg.Kiosk.SuffixLength,
		},
		extractor,
		recognize.NewMatcher(cfg.Kiosk.Threshold),
		store,
		func(ctx context.Context, memberID string) (recognize.CheckInResult, error) {
			member, _, err := svc.CheckIn(ctx, memberID)
			if err != nil {
				return recognize.CheckInResult{}, err
			}
			return recognize.CheckInResult{
				MemberID:        member.ID,
				MemberName:      member.Name,
				RemainingCredit: member.RemainingTickets,
			}, nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping kiosk...")
		cancel()
	}()

	// Print state transitions as they happen.
	events := session.AddListener()
	defer session.RemoveListener(events)
	go func() {
		for status := range events {
			if status.Message != "" {
				fmt.Printf("[%s] %s\n", status.State, status.Message)
			}
		}
	}()

	fmt.Printf("Scanning %s every %s (threshold %.2f, %d consecutive matches)\n",
		cfg.Kiosk.CameraURL, cfg.Kiosk.ScanInterval, cfg.Kiosk.Threshold, cfg.Kiosk.RequiredMatches)

	camera := recognize.NewSnapshotCamera(cfg.Kiosk.CameraURL)
	err = session.Run(ctx, camera)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
