package repository

import (
	"context"
	"io"
)

// ObjectStore holds the page images handed to the OCR provider.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
	// Bucket names the bucket or container objects are written to.
	Bucket() string
}
