// Package backup snapshots remote instance state before deployments, serves
// those snapshots back for rollback, and enforces the retention policy that
// keeps the backup table from growing without bound.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// BlobStore holds backup payloads too large to keep inline in the database.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// S3Settings carries the credentials and endpoint for the backup bucket.
// BaseEndpoint is set when the store is MinIO rather than AWS proper.
type S3Settings struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3BlobStore stores backup payloads in an S3-compatible bucket.
type S3BlobStore struct {
	settings S3Settings
	client   *s3.Client
}

func NewS3BlobStore(ctx context.Context, settings S3Settings) (*S3BlobStore, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(settings.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			settings.RootUser,
			settings.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(settings.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{settings: settings, client: client}, nil
}

// storageKey buckets objects by date so lifecycle rules on the bucket can
// work on prefixes.
func storageKey() string {
	d := time.Now()
	return fmt.Sprintf("backups/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3BlobStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.settings.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *S3BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.settings.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.settings.Bucket,
		Key:    &key,
	})
	return err
}
