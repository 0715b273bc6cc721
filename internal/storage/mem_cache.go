package storage

import "sync"

// MemCache holds blobs for the lifetime of the process. Used when
// persistent downloads are disabled and in tests.
type MemCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemCache creates an empty cache.
func NewMemCache() *MemCache {
	return &MemCache{blobs: make(map[string][]byte)}
}

// Put stores a copy of the blob.
func (c *MemCache) Put(id string, data []byte) error {
	if id == "" {
		return ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[id] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the cached blob.
func (c *MemCache) Get(id string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.blobs[id]
	if !ok {
		return nil, ErrNotCached
	}
	return append([]byte(nil), data...), nil
}

// Has reports whether a blob is cached.
func (c *MemCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blobs[id]
	return ok
}

// Delete removes a blob.
func (c *MemCache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blobs, id)
	return nil
}

// Clear removes every blob.
func (c *MemCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs = make(map[string][]byte)
	return nil
}

var _ BlobCache = (*MemCache)(nil)
