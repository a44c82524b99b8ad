// Package snapshot uploads database backups to S3-compatible storage.
// When S3 is not configured (empty bucket), the NoopUploader is used and
// backups stay local-only.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/cadence/internal/config"
)

// ErrNotConfigured is returned when S3 backup storage is not configured.
var ErrNotConfigured = errors.New("snapshot storage not configured")

const presignedURLExpiry = 15 * time.Minute

// Uploader uploads daily backups and generates pre-signed download URLs.
type Uploader interface {
	// Upload stores the backup file under the given day's object key.
	Upload(ctx context.Context, day string, filePath string) error

	// PresignedURL returns a pre-signed URL for downloading a day's backup.
	// Returns ErrNotConfigured when S3 is not configured.
	PresignedURL(ctx context.Context, day string) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
// This interface enables testing with mock implementations.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, opts)
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads backups to S3-compatible storage.
type S3Uploader struct {
	client s3Client
	bucket string
}

// Upload uploads the backup file at filePath under the day's key.
func (u *S3Uploader) Upload(ctx context.Context, day string, filePath string) error {
	if err := u.client.FPutObject(ctx, u.bucket, objectKey(day), filePath); err != nil {
		return fmt.Errorf("upload backup to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for a day's backup.
func (u *S3Uploader) PresignedURL(ctx context.Context, day string) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, objectKey(day), presignedURLExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(presignedURLExpiry), nil
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload is a no-op when S3 is not configured.
func (u *NoopUploader) Upload(ctx context.Context, day string, filePath string) error {
	return nil
}

// PresignedURL returns ErrNotConfigured when S3 is not configured.
func (u *NoopUploader) PresignedURL(ctx context.Context, day string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.SnapshotConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
	}, nil
}

// objectKey returns the S3 object key for one day's backup.
// Convention: backups/{YYYY-MM-DD}.db
func objectKey(day string) string {
	return "backups/" + day + ".db"
}
