package service

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/finners68/process-insurance/internal/repository"
)

const cleanupTimeout = 30 * time.Second

// Uploads tracks the objects written during one request. Every uploaded key
// is deleted at most once on success; Release removes whatever is left.
type Uploads struct {
	store   repository.ObjectStore
	log     *zap.Logger
	keys    []string
	deleted map[string]struct{}
}

func NewUploads(store repository.ObjectStore, log *zap.Logger) *Uploads {
	return &Uploads{
		store:   store,
		log:     log,
		deleted: make(map[string]struct{}),
	}
}

func (u *Uploads) Upload(ctx context.Context, key string, data []byte) error {
	if err := u.store.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	return nil
}

// Delete removes key unless it was already deleted. A failed delete leaves
// the key pending for Release.
func (u *Uploads) Delete(ctx context.Context, key string) error {
	if _, ok := u.deleted[key]; ok {
		return nil
	}
	if err := u.store.DeleteFile(ctx, key); err != nil {
		return err
	}
	u.deleted[key] = struct{}{}
	return nil
}

func (u *Uploads) Pending() []string {
	var pending []string
	for _, key := range u.keys {
		if _, ok := u.deleted[key]; !ok {
			pending = append(pending, key)
		}
	}
	return pending
}

// Release makes a best-effort attempt to delete every pending key. It runs
// detached from ctx cancellation so an aborted request still cleans up.
// Failures are logged and returned combined; callers must not let them
// change the response.
func (u *Uploads) Release(ctx context.Context) error {
	pending := u.Pending()
	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	var errs error
	for _, key := range pending {
		if err := u.Delete(ctx, key); err != nil {
			u.log.Warn("Failed to delete leftover object", zap.String("key", key), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		u.log.Info("Deleted leftover object", zap.String("key", key))
	}
	return errs
}
