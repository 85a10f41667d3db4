package cmd

import (
	"errors"
	"fmt"

	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/legacy"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import members from the legacy front-desk MariaDB",
	Long: `One-time migration from the old front-desk system. Members are
copied with their name, phone, join date, ticket balance, and status.
The legacy system has no face data, so imported members start
unenrolled; enroll them with 'gymdesk member enroll'.

Members that already exist (same name and phone) are skipped, so the
command is safe to re-run.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("dsn", "", "Legacy MariaDB DSN (overrides LEGACY_DATABASE_DSN)")
	importCmd.Flags().Bool("dry-run", false, "List what would be imported without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		cfg.Legacy.DSN = dsn
	}
	if cfg.Legacy.DSN == "" {
		return errors.New("legacy DSN is required (LEGACY_DATABASE_DSN or --dsn)")
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx := cmd.Context()

	fmt.Println("Connecting to legacy MariaDB...")
	legacyPool, err := legacy.NewPool(cfg.Legacy.DSN)
	if err != nil {
		return fmt.Errorf("connecting to legacy database: %w", err)
	}
	defer legacyPool.Close()

	legacyMembers, err := legacyPool.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("reading legacy members: %w", err)
	}
	if len(legacyMembers) == 0 {
		fmt.Println("Legacy database has no members.")
		return nil
	}
	fmt.Printf("Found %d members in the legacy system\n", len(legacyMembers))

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	existing, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing current members: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	key := func(name, phone string) string { return name + "\x00" + phone }
	for _, m := range existing {
		seen[key(m.Name, m.Phone)] = true
	}

	bar := progressbar.NewOptions(len(legacyMembers),
		progressbar.OptionSetDescription("Importing members"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("members"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var imported, skipped, failed int
	for _, m := range legacyMembers {
		if seen[key(m.Name, m.Phone)] {
			skipped++
			bar.Add(1)
			continue
		}
		if dryRun {
			imported++
			bar.Add(1)
			continue
		}
		if _, err := store.Create(ctx, m); err != nil {
			fmt.Printf("\nFailed to import %s: %v\n", m.Name, err)
			failed++
			bar.Add(1)
			continue
		}
		imported++
		bar.Add(1)
	}

	fmt.Printf("\n\nImported: %d, skipped (already present): %d, failed: %d\n", imported, skipped, failed)
	if dryRun {
		fmt.Println("Dry run, nothing was written.")
	}
	return nil
}
