package cmd

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kozaktomas/photo-indexer/internal/blob"
	"github.com/kozaktomas/photo-indexer/internal/config"
)

// newBlobStore builds the MinIO-backed blob store from the environment
// configuration. Fails with the list of missing variables when the
// connection is not fully configured.
func newBlobStore(cfg *config.Config) (*blob.Store, error) {
	if !cfg.MinioComplete() {
		return nil, fmt.Errorf("missing required environment variables: %s",
			strings.Join(cfg.MissingMinioVars(), ", "))
	}

	client := blob.NewS3Client(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey)
	return blob.NewStore(client, s3.NewPresignClient(client), cfg.Minio.Endpoint, cfg.Minio.Bucket), nil
}
