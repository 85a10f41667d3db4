package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gymdesk",
	Short: "Face check-in front desk for a gym",
	Long: `Gymdesk runs the gym front desk: a member registry with face
enrollment, a ticket ledger, an attendance log, and a camera kiosk that
checks members in by recognizing their face, with a phone-suffix keypad
fallback.`,
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
