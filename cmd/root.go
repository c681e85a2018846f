package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-indexer",
	Short: "A CLI tool for indexing photos by face and searching them with a selfie",
	Long: `Photo Indexer uploads photos to a MinIO bucket, extracts face embeddings
through an external embedding service, and keeps them in a JSON index
document. A selfie can then be matched against the index from the CLI
or over the HTTP API.`,
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
