package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-indexer/internal/config"
	"github.com/kozaktomas/photo-indexer/internal/detector"
	"github.com/kozaktomas/photo-indexer/internal/pipeline"
	"github.com/kozaktomas/photo-indexer/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index [photo-dir]",
	Short: "Upload photos and index their face embeddings",
	Long: `Upload every photo from a directory to the MinIO bucket, detect faces
through the embedding service and merge the results into the index
document. Photos already present in the index are re-indexed and their
old face records replaced. Unreadable or failing photos are skipped and
reported, never abort the batch.

The photo directory defaults to the PHOTO_DIR environment variable.

Example:
  photo-indexer index
  photo-indexer index /path/to/photos
  photo-indexer index --rebuild          # drop the old index first
  photo-indexer index --workers 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Int("workers", 4, "Number of photos processed concurrently")
	indexCmd.Flags().Bool("rebuild", false, "Rebuild the index from scratch instead of merging")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	photoDir := cfg.Index.PhotoDir
	if len(args) == 1 {
		photoDir = args[0]
	}

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := blobStore.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("preparing bucket: %w", err)
	}

	files, err := pipeline.ListImages(photoDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No photos found in %s\n", photoDir)
		return nil
	}

	fmt.Printf("Indexing %d photo(s) from %s\n", len(files), photoDir)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	p := &pipeline.Pipeline{
		Detector: detector.NewClient(cfg.Detector.URL, cfg.Detector.Dim),
		Uploader: blobStore,
		Store:    store.New(cfg.Index.File),
		Workers:  mustGetInt(cmd, "workers"),
		Rebuild:  mustGetBool(cmd, "rebuild"),
		OnImage: func(string, int, error) {
			bar.Add(1)
		},
	}

	report, err := p.Run(ctx, files)
	if err != nil {
		var corrupt *store.CorruptError
		if errors.As(err, &corrupt) {
			return fmt.Errorf("%w (re-run with --rebuild to start over)", err)
		}
		return err
	}
	fmt.Println()

	for _, skip := range report.Skipped {
		fmt.Printf("Skipped %s (%s): %v\n", skip.File, skip.Reason, skip.Err)
	}

	fmt.Printf("\nDone! Indexed %d photo(s) with %d face(s), %d skipped in %s\n",
		report.PhotosProcessed, report.FacesFound, len(report.Skipped),
		report.Duration.Round(time.Millisecond))
	fmt.Printf("Index now holds %d face record(s) (%s)\n", report.IndexedTotal, cfg.Index.File)
	return nil
}
