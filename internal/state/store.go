// Package state caches the last listing seen from the remote library
// so the shelf can come up instantly and `folio ls --cached` works
// offline. The cache is a mirror, never a source of truth: the remote
// listing always wins.
package state

import (
	"errors"
	"time"

	"github.com/avoswald/folio/internal/models"
)

// Store persists catalog snapshots.
type Store interface {
	// Save replaces the cached snapshot with the given entries,
	// preserving their order.
	Save(entries []*models.Entry) error

	// Load returns the last saved snapshot. ErrCatalogNotFound when
	// nothing has been saved yet.
	Load() (*Catalog, error)

	// Reset drops the cached snapshot.
	Reset() error

	// Close releases resources.
	Close() error
}

// Catalog is one cached listing snapshot.
type Catalog struct {
	Entries []*models.Entry `json:"entries"`
	SavedAt time.Time       `json:"saved_at"`
}

// Errors
var (
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrCatalogCorrupt  = errors.New("catalog cache is corrupt")
)

// CurrentSchemaVersion for cache migrations.
const CurrentSchemaVersion = 1
