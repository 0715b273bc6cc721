// Package store is the remote library boundary: a metadata row per
// document plus a blob holding the document bytes. Implementations
// are expected to be dumb — ordering, placeholder reconciliation and
// retry policy live in the shelf service, not here.
package store

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

// Record is one remote metadata row.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Locator   string    `json:"storage_path"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Metadata accompanies an upload. Size is taken from the blob itself.
type Metadata struct {
	Name      string
	Thumbnail string
}

// Store is implemented by the cloud store and the in-memory driver.
type Store interface {
	// Upload writes the blob and inserts the metadata row. The id is
	// chosen by the caller so an optimistic placeholder can be
	// correlated with the stored row.
	Upload(ctx context.Context, id, filename string, data []byte, meta Metadata) (*Record, error)

	// List returns all rows, ordered by creation time ascending.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes the row and its blob. Deleting an unknown id
	// fails with models.ErrEntryNotFound.
	Delete(ctx context.Context, id string) error

	// Download fetches the blob for a locator.
	Download(ctx context.Context, locator string) ([]byte, error)

	// PublicURL derives the fetch URL for a locator. Pure string
	// construction, no I/O and no error path.
	PublicURL(locator string) string

	// PresignGet returns a time-limited URL for a locator, for
	// handing the blob to something that cannot send credentials.
	PresignGet(ctx context.Context, locator string) (string, error)

	// Close releases connections.
	Close() error
}

// BlobKey derives the blob locator for a document: the caller-chosen
// id namespaces the file, the sanitized filename keeps the object
// recognizable in the bucket.
func BlobKey(id, filename string) string {
	return path.Join("documents", id, sanitizeFilename(filename))
}

// sanitizeFilename keeps blob keys portable: path separators and
// control characters collapse to underscores, and an empty result
// falls back to a fixed name.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "document.pdf"
	}
	return out
}

// ContentTypePDF is the only media type the library stores.
const ContentTypePDF = "application/pdf"

func validateUpload(id, filename string, data []byte) error {
	if id == "" {
		return fmt.Errorf("missing id")
	}
	if filename == "" {
		return fmt.Errorf("missing filename")
	}
	if len(data) == 0 {
		return fmt.Errorf("empty blob")
	}
	return nil
}
