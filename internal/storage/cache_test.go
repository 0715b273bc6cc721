package storage_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/storage"
)

func newDiskCache(t *testing.T) *storage.DiskCache {
	t.Helper()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	cache, err := storage.NewDiskCache(t.TempDir(), logger)
	require.NoError(t, err)
	return cache
}

func TestDiskCache(t *testing.T) {
	testCacheOperations(t, newDiskCache(t))
}

func TestMemCache(t *testing.T) {
	testCacheOperations(t, storage.NewMemCache())
}

func testCacheOperations(t *testing.T, cache storage.BlobCache) {
	blob := []byte("%PDF-1.7 cached bytes")

	t.Run("get before put", func(t *testing.T) {
		_, err := cache.Get("entry-1")
		assert.ErrorIs(t, err, storage.ErrNotCached)
		assert.False(t, cache.Has("entry-1"))
	})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, cache.Put("entry-1", blob))
		assert.True(t, cache.Has("entry-1"))

		got, err := cache.Get("entry-1")
		require.NoError(t, err)
		assert.Equal(t, blob, got)
	})

	t.Run("put replaces", func(t *testing.T) {
		replacement := []byte("%PDF-1.7 newer bytes")
		require.NoError(t, cache.Put("entry-1", replacement))

		got, err := cache.Get("entry-1")
		require.NoError(t, err)
		assert.Equal(t, replacement, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.Delete("entry-1"))
		assert.False(t, cache.Has("entry-1"))

		// Deleting again is fine.
		require.NoError(t, cache.Delete("entry-1"))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, cache.Put("a", blob))
		require.NoError(t, cache.Put("b", blob))

		require.NoError(t, cache.Clear())
		assert.False(t, cache.Has("a"))
		assert.False(t, cache.Has("b"))
	})

	t.Run("empty key rejected", func(t *testing.T) {
		assert.Error(t, cache.Put("", blob))
	})
}

func TestDiskCacheRejectsTraversal(t *testing.T) {
	cache := newDiskCache(t)

	for _, id := range []string{
		"../escape",
		"a/b",
		`a\b`,
		"dotted.name",
		"null\x00byte",
	} {
		err := cache.Put(id, []byte("data"))
		assert.ErrorIs(t, err, storage.ErrInvalidKey, "id %q", id)
	}
}

func TestDiskCachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	first, err := storage.NewDiskCache(dir, logger)
	require.NoError(t, err)
	require.NoError(t, first.Put("persist", []byte("bytes")))

	second, err := storage.NewDiskCache(dir, logger)
	require.NoError(t, err)
	got, err := second.Get("persist")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), got)
}

func TestDiskCacheSizeLimit(t *testing.T) {
	cache := newDiskCache(t)
	cache.SetMaxBlobSize(8)

	assert.Error(t, cache.Put("big", []byte("123456789")))
	assert.NoError(t, cache.Put("ok", []byte("12345678")))
}

func TestDiskCacheLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	cache, err := storage.NewDiskCache(dir, logger)
	require.NoError(t, err)
	require.NoError(t, cache.Put("tidy", []byte("bytes")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tidy.pdf", entries[0].Name())
	assert.Equal(t, filepath.Ext(entries[0].Name()), ".pdf")
}
