package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/database/postgres"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/spf13/cobra"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage the member registry",
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members",
	RunE:  runMemberList,
}

var memberAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a member",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberAdd,
}

var memberEnrollCmd = &cobra.Command{
	Use:   "enroll <member-id> <photo-file>",
	Short: "Enroll a member's face from a photo",
	Long: `Extract a face embedding from a photo file and store it on the
member. Re-enrollment replaces the previous embedding.`,
	Args: cobra.ExactArgs(2),
	RunE: runMemberEnroll,
}

func init() {
	rootCmd.AddCommand(memberCmd)
	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberAddCmd)
	memberCmd.AddCommand(memberEnrollCmd)

	memberListCmd.Flags().String("search", "", "Filter by name")
	memberAddCmd.Flags().String("phone", "", "Phone number")
	memberAddCmd.Flags().Int("tickets", 0, "Initial ticket count")
}

// openStore connects to PostgreSQL using the environment configuration.
func openStore(cfg *config.Config) (*postgres.MemberStore, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	return postgres.Open(&cfg.Database)
}

func runMemberList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	var members []database.Member
	if search, _ := cmd.Flags().GetString("search"); search != "" {
		members, err = store.SearchByName(ctx, search)
	} else {
		members, err = store.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing members: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tTICKETS\tSTATUS\tFACE")
	for _, m := range members {
		face := "-"
		if m.Enrolled() {
			face = "enrolled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			m.ID, m.Name, m.Phone, m.RemainingTickets, m.TotalTickets, m.Status, face)
	}
	w.Flush()
	fmt.Printf("\n%d members\n", len(members))
	return nil
}

func runMemberAdd(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	phone, _ := cmd.Flags().GetString("phone")
	tickets, _ := cmd.Flags().GetInt("tickets")

	member, err := store.Create(cmd.Context(), database.Member{
		Name:             args[0],
		Phone:            phone,
		JoinDate:         time.Now(),
		TotalTickets:     tickets,
		RemainingTickets: tickets,
		Status:           database.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("creating member: %w", err)
	}

	fmt.Printf("Created member %s (%s), %d tickets\n", member.Name, member.ID, member.RemainingTickets)
	return nil
}

func runMemberEnroll(cmd *cobra.Command, args []string) error {
	memberID, photoPath := args[0], args[1]

	cfg := config.Load()
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	member, err := store.Get(ctx, memberID)
	if err != nil {
		return fmt.Errorf("loading member: %w", err)
	}

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	extractor := recognize.NewModelClient(cfg.Embedding.URL, cfg.Embedding.InputSize, cfg.Embedding.ScoreFloor)
	embedding, err := extractor.Extract(ctx, data)
	if errors.Is(err, recognize.ErrNoFace) {
		return fmt.Errorf("no face detected in %s", photoPath)
	}
	if err != nil {
		return fmt.Errorf("extracting face: %w", err)
	}

	if err := store.SetEmbedding(ctx, member.ID, embedding); err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}

	fmt.Printf("Enrolled %s (%d-dim embedding)\n", member.Name, len(embedding))
	return nil
}
