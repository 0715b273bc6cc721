package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avoswald/folio/internal/events"
)

const cacheExt = ".pdf"

// DiskCache persists blobs under a base directory, one file per entry
// id. Writes are atomic (temp file + rename) so a crashed process
// never leaves a torn blob behind.
type DiskCache struct {
	baseDir     string
	maxBlobSize int64
	logger      *events.Logger
}

// NewDiskCache creates the cache directory if needed.
func NewDiskCache(baseDir string, logger *events.Logger) (*DiskCache, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &DiskCache{
		baseDir:     absPath,
		maxBlobSize: 100 * 1024 * 1024,
		logger:      logger.WithField("component", "blob_cache"),
	}, nil
}

// SetMaxBlobSize adjusts the per-blob size limit.
func (c *DiskCache) SetMaxBlobSize(size int64) {
	c.maxBlobSize = size
}

// Put stores a blob atomically.
func (c *DiskCache) Put(id string, data []byte) error {
	path, err := c.blobPath(id)
	if err != nil {
		return err
	}

	if int64(len(data)) > c.maxBlobSize {
		return fmt.Errorf("blob too large: %d bytes (max: %d)", len(data), c.maxBlobSize)
	}

	c.logger.WithFields(map[string]interface{}{
		"id":    id,
		"bytes": len(data),
	}).Debug("Caching blob")

	tempPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tempPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Get returns the cached blob.
func (c *DiskCache) Get(id string) ([]byte, error) {
	path, err := c.blobPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("read cached blob: %w", err)
	}
	return data, nil
}

// Has reports whether a blob is cached.
func (c *DiskCache) Has(id string) bool {
	path, err := c.blobPath(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes a blob; missing blobs are fine.
func (c *DiskCache) Delete(id string) error {
	path, err := c.blobPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cached blob: %w", err)
	}
	return nil
}

// Clear removes every cached blob, leaving the directory in place.
func (c *DiskCache) Clear() error {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return fmt.Errorf("read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), cacheExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.baseDir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// blobPath maps an entry id to its file, refusing ids that could
// escape the cache directory.
func (c *DiskCache) blobPath(id string) (string, error) {
	if id == "" || !validCacheKey(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}
	return filepath.Join(c.baseDir, id+cacheExt), nil
}

// validCacheKey accepts ids made of the characters our id generator
// produces. Anything else (separators, dots, null bytes) is rejected
// rather than sanitized.
func validCacheKey(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

var _ BlobCache = (*DiskCache)(nil)
