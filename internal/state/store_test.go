package state_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/models"
	"github.com/avoswald/folio/internal/state"
)

func TestMemStore(t *testing.T) {
	testStoreOperations(t, state.NewMemStore())
}

func TestSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "catalog.db")
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := state.NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestSQLiteStoreCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dir", "catalog.db")
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := state.NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(nil))
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "catalog.db")
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := state.NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)

	entries := []*models.Entry{
		{ID: "persist-1", DisplayName: "kept.pdf", SizeBytes: 10,
			RemoteLocator: "documents/persist-1/kept.pdf", CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, store.Save(entries))
	require.NoError(t, store.Close())

	reopened, err := state.NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)
	defer reopened.Close()

	catalog, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, catalog.Entries, 1)
	assert.Equal(t, "persist-1", catalog.Entries[0].ID)
	assert.Equal(t, "kept.pdf", catalog.Entries[0].DisplayName)
}

func testStoreOperations(t *testing.T, store state.Store) {
	t.Run("load before first save", func(t *testing.T) {
		_, err := store.Load()
		assert.ErrorIs(t, err, state.ErrCatalogNotFound)
	})

	entries := []*models.Entry{
		{
			ID:            "id-new",
			DisplayName:   "newest.pdf",
			SizeBytes:     2048,
			Thumbnail:     "data:image/png;base64,abcd",
			RemoteLocator: "documents/id-new/newest.pdf",
			PublicURL:     "memory://library/documents/id-new/newest.pdf",
			CreatedAt:     time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:            "id-old",
			DisplayName:   "oldest.pdf",
			SizeBytes:     1024,
			RemoteLocator: "documents/id-old/oldest.pdf",
			CreatedAt:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(entries))

		catalog, err := store.Load()
		require.NoError(t, err)
		require.Len(t, catalog.Entries, 2)
		assert.False(t, catalog.SavedAt.IsZero())

		// Listing order survives the round trip.
		assert.Equal(t, "id-new", catalog.Entries[0].ID)
		assert.Equal(t, "id-old", catalog.Entries[1].ID)

		first := catalog.Entries[0]
		assert.Equal(t, "newest.pdf", first.DisplayName)
		assert.Equal(t, int64(2048), first.SizeBytes)
		assert.Equal(t, "data:image/png;base64,abcd", first.Thumbnail)
		assert.Equal(t, "documents/id-new/newest.pdf", first.RemoteLocator)
		assert.Equal(t, "memory://library/documents/id-new/newest.pdf", first.PublicURL)

		// Empty thumbnail stays empty, not a junk value.
		assert.Empty(t, catalog.Entries[1].Thumbnail)
	})

	t.Run("save replaces snapshot", func(t *testing.T) {
		replacement := []*models.Entry{
			{ID: "id-only", DisplayName: "only.pdf", SizeBytes: 1,
				RemoteLocator: "documents/id-only/only.pdf", CreatedAt: time.Now().UTC()},
		}
		require.NoError(t, store.Save(replacement))

		catalog, err := store.Load()
		require.NoError(t, err)
		require.Len(t, catalog.Entries, 1)
		assert.Equal(t, "id-only", catalog.Entries[0].ID)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, store.Reset())

		_, err := store.Load()
		assert.ErrorIs(t, err, state.ErrCatalogNotFound)
	})
}
