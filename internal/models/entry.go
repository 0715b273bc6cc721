package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Entry represents one document known to the library. An entry starts
// life as a placeholder (temporary ID, bytes in memory, nothing
// persisted) and is reconciled in place once the remote store confirms
// the upload.
type Entry struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"name"`
	SizeBytes     int64     `json:"size"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	RemoteLocator string    `json:"storage_path,omitempty"`
	PublicURL     string    `json:"public_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Placeholder marks an entry whose persistence is still in flight.
	Placeholder bool `json:"-"`

	// LocalBlob holds the document bytes when they are in memory,
	// either because the file was added this session or because it has
	// already been downloaded. Never serialized.
	LocalBlob []byte `json:"-"`
}

// NewPlaceholder creates the optimistic entry inserted before any
// asynchronous work runs. id is the local correlation id used to find
// the entry again during reconcile or rollback.
func NewPlaceholder(id, name string, data []byte) *Entry {
	return &Entry{
		ID:          id,
		DisplayName: NormalizeName(name),
		SizeBytes:   int64(len(data)),
		CreatedAt:   time.Now().UTC(),
		Placeholder: true,
		LocalBlob:   data,
	}
}

// Openable reports whether the entry can be resolved to document
// bytes. An entry with neither in-memory bytes nor a remote locator is
// an incomplete placeholder and must not be opened.
func (e *Entry) Openable() bool {
	return len(e.LocalBlob) > 0 || e.RemoteLocator != ""
}

// Persisted reports whether the remote store has confirmed the entry.
func (e *Entry) Persisted() bool {
	return e.RemoteLocator != "" && !e.Placeholder
}

// HasThumbnail reports whether a preview image is available. Absence
// is a normal, displayable state, not an error.
func (e *Entry) HasThumbnail() bool {
	return e.Thumbnail != ""
}

// Validate checks structural invariants on a persisted entry.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry ID is required")
	}
	if strings.TrimSpace(e.DisplayName) == "" {
		return fmt.Errorf("entry name is required")
	}
	if e.SizeBytes < 0 {
		return fmt.Errorf("entry size cannot be negative")
	}
	if !e.Placeholder && e.RemoteLocator == "" {
		return fmt.Errorf("persisted entry requires a storage path")
	}
	return nil
}

// NormalizeName trims and NFC-normalizes a display name. File pickers
// on different platforms hand over differently composed Unicode
// (macOS produces NFD); the library stores one canonical form.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
