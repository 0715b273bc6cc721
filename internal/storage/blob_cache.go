// Package storage caches downloaded document blobs so reopening an
// entry does not refetch it from the remote store.
package storage

import "errors"

// BlobCache stores document bytes keyed by entry id.
type BlobCache interface {
	// Put stores a blob, replacing any previous one for the id.
	Put(id string, data []byte) error

	// Get returns the cached blob. ErrNotCached when absent.
	Get(id string) ([]byte, error)

	// Has reports whether a blob is cached.
	Has(id string) bool

	// Delete removes a blob. Removing an absent blob is not an error.
	Delete(id string) error

	// Clear removes every cached blob.
	Clear() error
}

// Errors
var (
	ErrNotCached  = errors.New("blob not cached")
	ErrInvalidKey = errors.New("invalid cache key")
)
