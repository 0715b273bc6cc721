package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/models"
)

// SQLiteStore keeps the catalog cache in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens (or creates) the cache database.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "catalog_cache"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS catalog_meta (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        saved_at TIMESTAMP NOT NULL,
        schema_version INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS catalog_entries (
        position INTEGER PRIMARY KEY,
        id TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL,
        size_bytes INTEGER NOT NULL DEFAULT 0,
        storage_path TEXT NOT NULL,
        thumbnail TEXT,
        public_url TEXT,
        created_at TIMESTAMP NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save replaces the snapshot inside one transaction.
func (s *SQLiteStore) Save(entries []*models.Entry) error {
	s.logger.WithField("entries", len(entries)).Debug("Saving catalog snapshot")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM catalog_entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO catalog_entries (position, id, name, size_bytes, storage_path, thumbnail, public_url, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		thumb := sql.NullString{String: entry.Thumbnail, Valid: entry.Thumbnail != ""}
		url := sql.NullString{String: entry.PublicURL, Valid: entry.PublicURL != ""}
		if _, err := stmt.Exec(i, entry.ID, entry.DisplayName, entry.SizeBytes,
			entry.RemoteLocator, thumb, url, entry.CreatedAt); err != nil {
			return fmt.Errorf("insert entry %s: %w", entry.ID, err)
		}
	}

	_, err = tx.Exec(`
        INSERT INTO catalog_meta (id, saved_at, schema_version)
        VALUES (1, CURRENT_TIMESTAMP, ?)
        ON CONFLICT(id) DO UPDATE SET
            saved_at = CURRENT_TIMESTAMP,
            schema_version = excluded.schema_version
    `, CurrentSchemaVersion)
	if err != nil {
		return fmt.Errorf("upsert meta: %w", err)
	}

	return tx.Commit()
}

// Load returns the last snapshot.
func (s *SQLiteStore) Load() (*Catalog, error) {
	var catalog Catalog

	err := s.db.QueryRow(`
        SELECT saved_at FROM catalog_meta WHERE id = 1
    `).Scan(&catalog.SavedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCatalogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}

	rows, err := s.db.Query(`
        SELECT id, name, size_bytes, storage_path, thumbnail, public_url, created_at
        FROM catalog_entries
        ORDER BY position
    `)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry models.Entry
			thumb sql.NullString
			url   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.DisplayName, &entry.SizeBytes,
			&entry.RemoteLocator, &thumb, &url, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		if thumb.Valid {
			entry.Thumbnail = thumb.String
		}
		if url.Valid {
			entry.PublicURL = url.String
		}
		catalog.Entries = append(catalog.Entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return &catalog, nil
}

// Reset drops the snapshot.
func (s *SQLiteStore) Reset() error {
	s.logger.Info("Resetting catalog cache")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM catalog_entries"); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM catalog_meta"); err != nil {
		return fmt.Errorf("delete meta: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
