package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// objectWriter is the part of *storage.Writer used for uploads. Close
// commits the object; cancelling the writer's context discards it.
type objectWriter interface {
	io.Writer
	Close() error
}

type gcsRepository struct {
	client    *storage.Client
	bucket    string
	timeout   time.Duration
	log       *zap.Logger
	newWriter func(ctx context.Context, key, contentType string) objectWriter
}

// NewGCSRepository stores page images in Google Cloud Storage using
// application default credentials.
func NewGCSRepository(ctx context.Context, bucket string, timeout time.Duration, log *zap.Logger) (ObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	r := &gcsRepository{
		client:  client,
		bucket:  bucket,
		timeout: timeout,
		log:     log,
	}
	r.newWriter = r.storageWriter
	return r, nil
}

func (r *gcsRepository) storageWriter(ctx context.Context, key, contentType string) objectWriter {
	w := r.client.Bucket(r.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (r *gcsRepository) Bucket() string {
	return r.bucket
}

func (r *gcsRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *gcsRepository) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	w := r.newWriter(ctx, key, contentType)

	if _, err := io.Copy(w, body); err != nil {
		// abort without Close so no partial object is committed
		cancel()
		r.log.Error("Failed to upload file to GCS", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := w.Close(); err != nil {
		r.log.Error("Failed to finalize GCS upload", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	r.log.Info("File uploaded to GCS",
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

func (r *gcsRepository) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := r.client.Bucket(r.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", r.bucket, key, err)
	}
	return rc, nil
}

func (r *gcsRepository) DeleteFile(ctx context.Context, key string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.Bucket(r.bucket).Object(key).Delete(ctx); err != nil {
		return err
	}

	r.log.Info("File deleted from GCS", zap.String("key", key))
	return nil
}
