package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-indexer/internal/config"
	"github.com/kozaktomas/photo-indexer/internal/detector"
	"github.com/kozaktomas/photo-indexer/internal/faceindex"
	"github.com/kozaktomas/photo-indexer/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search <selfie>",
	Short: "Find indexed photos containing the face from a selfie",
	Long: `Detect the face in a selfie and search the index for photos containing
the same person. The selfie must contain exactly one face.

Matches are printed in ascending distance order, closest face first.
When the MinIO connection is configured, each match carries a
dereferenceable photo URL.

Example:
  photo-indexer search selfie.jpg
  photo-indexer search selfie.jpg --threshold 0.4   # stricter matching
  photo-indexer search selfie.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64P("threshold", "t", 0, "Maximum face distance, lower = stricter (default from MATCH_THRESHOLD_CLI)")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

// searchMatch is one row of the search output.
type searchMatch struct {
	Photo      string  `json:"photo"`
	FaceID     string  `json:"face_id"`
	PhotoURL   string  `json:"photo_url,omitempty"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// searchOutput is the JSON output structure.
type searchOutput struct {
	Selfie        string        `json:"selfie"`
	Threshold     float64       `json:"threshold"`
	Matches       []searchMatch `json:"matches"`
	MatchedPhotos int           `json:"matched_photos"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	selfiePath := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()

	threshold := cfg.Thresholds.CLI
	if cmd.Flags().Changed("threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}

	data, err := os.ReadFile(selfiePath)
	if err != nil {
		return fmt.Errorf("reading selfie %s: %w", selfiePath, err)
	}

	ctx := context.Background()
	faces, err := detector.NewClient(cfg.Detector.URL, cfg.Detector.Dim).DetectFaces(ctx, data)
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		return fmt.Errorf("no face found in %s, use a clear frontal photo", selfiePath)
	}
	if len(faces) > 1 {
		return fmt.Errorf("found %d faces in %s, use a photo with exactly one face", len(faces), selfiePath)
	}

	idx, err := store.New(cfg.Index.File).Load()
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		fmt.Printf("The index is empty. Run 'photo-indexer index' first.\n")
		return nil
	}

	matches, err := faceindex.FindMatches(faces[0].Embedding, idx, threshold)
	if err != nil {
		return err
	}

	results := make([]searchMatch, 0, len(matches))
	photos := make(map[string]bool)
	for _, m := range matches {
		results = append(results, searchMatch{
			Photo:      m.Record.PhotoID,
			FaceID:     m.Record.FaceID,
			Distance:   m.Distance,
			Confidence: m.Confidence,
		})
		photos[m.Record.PhotoID] = true
	}

	// Photo URLs are optional, the search itself works without MinIO.
	if cfg.MinioComplete() && len(results) > 0 {
		blobStore, err := newBlobStore(cfg)
		if err != nil {
			return err
		}
		for i := range results {
			results[i].PhotoURL = blobStore.ResolveURL(ctx, results[i].Photo)
		}
	}

	if jsonOutput {
		return outputJSON(searchOutput{
			Selfie:        selfiePath,
			Threshold:     threshold,
			Matches:       results,
			MatchedPhotos: len(photos),
		})
	}

	printSearchTable(results, threshold, len(photos))
	return nil
}

// printSearchTable prints the human-readable search results table.
func printSearchTable(results []searchMatch, threshold float64, photoCount int) {
	if len(results) == 0 {
		fmt.Printf("No matching photos found (threshold %.2f)\n", threshold)
		return
	}

	fmt.Printf("Found %d matching face(s) in %d photo(s) (threshold %.2f):\n\n",
		len(results), photoCount, threshold)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tFACE\tDISTANCE\tCONFIDENCE")
	fmt.Fprintln(w, "-----\t----\t--------\t----------")

	for i := range results {
		m := &results[i]
		photoRef := m.Photo
		if m.PhotoURL != "" {
			photoRef = m.PhotoURL
		}
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f\n", photoRef, m.FaceID, m.Distance, m.Confidence)
	}

	w.Flush()
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
