// Package repository persists archived quote responses.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medsupp_backend/internal/adapters/storage"

	"github.com/google/uuid"
)

const snapshotFolder = "quotes"

// ObjectStore is the slice of object storage the snapshot archive needs.
type ObjectStore interface {
	UploadBytes(ctx context.Context, bucket, fileKey, contentType string, data []byte) error
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*storage.PresignedURL, error)
}

// SnapshotStore writes ranked quote responses as JSON objects under
// quotes/<yyyy>/<mm>/<id>.json.
type SnapshotStore struct {
	store  ObjectStore
	bucket string
}

// NewSnapshotStore creates a snapshot store writing to bucket.
func NewSnapshotStore(store ObjectStore, bucket string) *SnapshotStore {
	return &SnapshotStore{store: store, bucket: bucket}
}

// SnapshotKey returns the object key for a snapshot taken at the given time.
func SnapshotKey(id uuid.UUID, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s.json", snapshotFolder, at.Year(), int(at.Month()), id)
}

// Save marshals payload and uploads it.
func (s *SnapshotStore) Save(ctx context.Context, id uuid.UUID, at time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode quote snapshot: %w", err)
	}
	if err := s.store.UploadBytes(ctx, s.bucket, SnapshotKey(id, at), "application/json", data); err != nil {
		return fmt.Errorf("store quote snapshot: %w", err)
	}
	return nil
}

// DownloadURL returns a presigned URL for the snapshot taken in the given month.
func (s *SnapshotStore) DownloadURL(ctx context.Context, id uuid.UUID, year int, month time.Month) (*storage.PresignedURL, error) {
	key := SnapshotKey(id, time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	url, err := s.store.GenerateDownloadURL(ctx, s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("presign quote snapshot: %w", err)
	}
	return url, nil
}
