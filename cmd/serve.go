package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-indexer/internal/config"
	"github.com/kozaktomas/photo-indexer/internal/detector"
	"github.com/kozaktomas/photo-indexer/internal/pipeline"
	"github.com/kozaktomas/photo-indexer/internal/store"
	"github.com/kozaktomas/photo-indexer/internal/web"
	"github.com/kozaktomas/photo-indexer/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Indexer API server.
The server answers selfie match queries (POST /api/v1/matches) and can
reindex the configured photo directory on demand (POST /api/v1/index).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves host and port, flags win over environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (string, int) {
	host := cfg.Web.Host
	port := cfg.Web.Port
	if cmd.Flags().Changed("host") {
		host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("port") {
		port = mustGetInt(cmd, "port")
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := blobStore.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("preparing bucket: %w", err)
	}

	indexStore := store.New(cfg.Index.File)
	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.Dim)

	// The matches handler and the reindex pipeline share the index store;
	// the pipeline serializes writes, queries reload on every request.
	p := &pipeline.Pipeline{
		Detector: det,
		Uploader: blobStore,
		Store:    indexStore,
	}

	matches := handlers.NewMatchesHandler(cfg, indexStore, det, blobStore)
	reindex := handlers.NewReindexHandler(p, cfg.Index.PhotoDir)

	host, port := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(host, port, matches, reindex)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Indexer API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
