package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect the attendance log",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List check-ins, newest first",
	RunE:  runAttendanceList,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)

	attendanceListCmd.Flags().Int("limit", 50, "Maximum records to show (0 = all)")
	attendanceListCmd.Flags().String("member", "", "Filter by member ID")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	memberID, _ := cmd.Flags().GetString("member")

	var records []database.AttendanceRecord
	if memberID != "" {
		records, err = store.ListAttendanceByMember(ctx, memberID)
	} else {
		records, err = store.ListAttendance(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("listing attendance: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMEMBER\tID")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.MemberName, r.MemberID)
	}
	w.Flush()
	fmt.Printf("\n%d check-ins\n", len(records))
	return nil
}
