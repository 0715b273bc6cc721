package state

import (
	"sync"
	"time"

	"github.com/avoswald/folio/internal/models"
)

// MemStore keeps the catalog snapshot in memory. Used when no cache
// path is configured and in tests.
type MemStore struct {
	mu      sync.Mutex
	catalog *Catalog
}

// NewMemStore creates an empty in-memory cache.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Save replaces the snapshot.
func (s *MemStore) Save(entries []*models.Entry) error {
	copied := make([]*models.Entry, len(entries))
	for i, entry := range entries {
		e := *entry
		copied[i] = &e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = &Catalog{Entries: copied, SavedAt: time.Now().UTC()}
	return nil
}

// Load returns the last snapshot.
func (s *MemStore) Load() (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog == nil {
		return nil, ErrCatalogNotFound
	}

	copied := make([]*models.Entry, len(s.catalog.Entries))
	for i, entry := range s.catalog.Entries {
		e := *entry
		copied[i] = &e
	}
	return &Catalog{Entries: copied, SavedAt: s.catalog.SavedAt}, nil
}

// Reset drops the snapshot.
func (s *MemStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = nil
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error {
	return nil
}

var _ Store = (*MemStore)(nil)
