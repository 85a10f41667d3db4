package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <image-file>",
	Short: "Match one image against the member gallery",
	Long: `Extract a face embedding from an image and report the closest
enrolled member. Useful for tuning the distance threshold against real
photos before changing the kiosk configuration.

Examples:
  # Match a photo with the configured threshold
  gymdesk match visitor.jpg

  # Try a stricter threshold
  gymdesk match visitor.jpg --threshold 0.4

  # Machine-readable output
  gymdesk match visitor.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("threshold", 0, "Distance threshold (defaults to kiosk config)")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

type matchOutput struct {
	Matched    bool    `json:"matched"`
	MemberID   string  `json:"member_id,omitempty"`
	MemberName string  `json:"member_name,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Threshold  float64 `json:"threshold"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold <= 0 {
		threshold = cfg.Kiosk.Threshold
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	extractor := recognize.NewModelClient(cfg.Embedding.URL, cfg.Embedding.InputSize, cfg.Embedding.ScoreFloor)
	embedding, err := extractor.Extract(ctx, data)
	if errors.Is(err, recognize.ErrNoFace) {
		return errors.New("no face detected in image")
	}
	if err != nil {
		return fmt.Errorf("extracting face: %w", err)
	}

	gallery, err := store.Gallery(ctx)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	if len(gallery) == 0 {
		return errors.New("no enrolled members to match against")
	}

	matcher := recognize.NewMatcher(threshold)
	match, ok := matcher.Match(embedding, gallery)

	out := matchOutput{Matched: ok, Threshold: threshold}
	if ok {
		member, err := store.Get(ctx, match.MemberID)
		if err != nil {
			return fmt.Errorf("loading matched member: %w", err)
		}
		out.MemberID = member.ID
		out.MemberName = member.Name
		out.Distance = match.Distance
		out.Confidence = match.Confidence
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if !ok {
		fmt.Printf("No match below threshold %.2f (%d gallery entries)\n", threshold, len(gallery))
		return nil
	}
	fmt.Printf("Matched %s (%s)\n", out.MemberName, out.MemberID)
	fmt.Printf("  Distance:   %.4f (threshold %.2f)\n", out.Distance, threshold)
	fmt.Printf("  Confidence: %.0f%%\n", out.Confidence*100)
	return nil
}
