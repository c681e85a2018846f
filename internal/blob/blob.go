// Package blob stores photos in an S3-compatible object store (MinIO in
// the default deployment) and resolves photo keys to dereferenceable URLs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// signedURLExpiry keeps match result links valid long enough that stored
// responses do not go stale.
const signedURLExpiry = 10 * 365 * 24 * time.Hour

// S3API abstracts the S3 operations used by Store. *s3.Client satisfies it.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Presigner abstracts presigned URL generation. *s3.PresignClient
// satisfies it.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadError reports a failed photo upload. The pipeline records it and
// moves on to the next image.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s to blob store: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Store is a photo blob store backed by an S3-compatible service.
type Store struct {
	client    S3API
	presigner Presigner
	endpoint  string
	bucket    string
}

// NewStore creates a blob store on a pre-configured S3 client. The
// endpoint is only used to build unsigned fallback URLs.
func NewStore(client S3API, presigner Presigner, endpoint, bucket string) *Store {
	return &Store{
		client:    client,
		presigner: presigner,
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		bucket:    bucket,
	}
}

// NewS3Client builds an s3.Client for an S3-compatible endpoint with
// static credentials. Path-style addressing is required for MinIO.
func NewS3Client(endpoint, accessKey, secretKey string) *s3.Client {
	return s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "us-east-1",
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
			}, nil
		}),
	})
}

// EnsureBucket checks that the bucket exists and creates it when missing.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores the photo under key and returns the key as the stable
// photo identifier.
func (s *Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return key, nil
}

// ResolveURL returns a dereferenceable URL for a stored photo. It prefers
// a long-lived presigned URL; when the object is missing or presigning
// fails, it falls back to the plain endpoint/bucket/key form so match
// results always carry some usable link.
func (s *Store) ResolveURL(ctx context.Context, key string) string {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return s.fallbackURL(key)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = signedURLExpiry
	})
	if err != nil || req.URL == "" {
		return s.fallbackURL(key)
	}
	return req.URL
}

func (s *Store) fallbackURL(key string) string {
	return s.endpoint + "/" + s.bucket + "/" + url.PathEscape(key)
}

// isNotFound reports whether err indicates a missing S3 bucket or object.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
