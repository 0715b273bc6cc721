package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avoswald/folio/internal/models"
)

// MemStore is the process-local store driver. It backs demos and
// tests and keeps the same contract as CloudStore: rows in creation
// order, caller-chosen ids, locator-addressed blobs.
type MemStore struct {
	mu       sync.Mutex
	records  []*Record // creation order, oldest first
	blobs    map[string][]byte
	lastTime time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Upload stores the blob and appends the row.
func (s *MemStore) Upload(ctx context.Context, id, filename string, data []byte, meta Metadata) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateUpload(id, filename, data); err != nil {
		return nil, &models.StoreError{Op: "upload", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return nil, &models.StoreError{Op: "upload", Err: fmt.Errorf("duplicate id %s", id)}
		}
	}

	name := meta.Name
	if name == "" {
		name = filename
	}

	rec := &Record{
		ID:        id,
		Name:      name,
		Size:      int64(len(data)),
		Locator:   BlobKey(id, filename),
		Thumbnail: meta.Thumbnail,
		CreatedAt: s.nextTime(),
	}

	s.blobs[rec.Locator] = append([]byte(nil), data...)
	s.records = append(s.records, rec)

	out := *rec
	return &out, nil
}

// List returns copies of all rows in creation order.
func (s *MemStore) List(ctx context.Context) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Record, len(s.records))
	for i, rec := range s.records {
		out := *rec
		result[i] = &out
	}
	return result, nil
}

// Delete removes the row and its blob.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID == id {
			delete(s.blobs, rec.Locator)
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return models.ErrEntryNotFound
}

// Download returns a copy of the blob for a locator.
func (s *MemStore) Download(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[locator]
	if !ok {
		return nil, &models.StoreError{Op: "download", Locator: locator, Err: models.ErrEntryNotFound}
	}
	return append([]byte(nil), data...), nil
}

// PublicURL derives a synthetic URL for a locator.
func (s *MemStore) PublicURL(locator string) string {
	return "memory://library/" + locator
}

// PresignGet returns the public URL; nothing to sign in memory.
func (s *MemStore) PresignGet(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.PublicURL(locator), nil
}

// Close is a no-op.
func (s *MemStore) Close() error {
	return nil
}

// nextTime returns a strictly increasing timestamp so creation-time
// ordering stays total even within one clock tick. Callers hold s.mu.
func (s *MemStore) nextTime() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = now
	return now
}

var _ Store = (*MemStore)(nil)
