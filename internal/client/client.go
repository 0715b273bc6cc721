// Package client is the application shell: it wires the services
// together, owns the active viewer session pointer, and routes
// open/close between the shelf and the viewer.
package client

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/avoswald/folio/internal/config"
	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/raster"
	"github.com/avoswald/folio/internal/services/shelf"
	"github.com/avoswald/folio/internal/services/thumbnail"
	"github.com/avoswald/folio/internal/services/viewer"
	"github.com/avoswald/folio/internal/state"
	"github.com/avoswald/folio/internal/storage"
	"github.com/avoswald/folio/internal/store"
)

// Client provides the high-level API for folio operations.
type Client struct {
	Shelf  *shelf.Service
	Viewer *viewer.Service
	Thumbs *thumbnail.Generator
	Store  store.Store

	config  *config.Config
	logger  *events.Logger
	catalog state.Store
	cache   storage.BlobCache

	mu       sync.Mutex
	active   *viewer.Session
	activeID string
}

// New creates a folio client with production collaborators selected by
// the configuration.
func New(ctx context.Context, cfg *config.Config, logger *events.Logger) (*Client, error) {
	engine := raster.NewPDFEngine(logger)

	libStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	catalog, err := newCatalog(cfg, logger)
	if err != nil {
		libStore.Close()
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}

	cache, err := newBlobCache(cfg, logger)
	if err != nil {
		libStore.Close()
		catalog.Close()
		return nil, fmt.Errorf("create blob cache: %w", err)
	}

	thumbs := thumbnail.NewGenerator(engine, logger)

	return &Client{
		Shelf:   shelf.NewService(libStore, thumbs, cache, catalog, logger),
		Viewer:  viewer.NewService(engine, cfg.Viewer, logger),
		Thumbs:  thumbs,
		Store:   libStore,
		config:  cfg,
		logger:  logger,
		catalog: catalog,
		cache:   cache,
	}, nil
}

// NewWithCollaborators assembles a client around injected services.
// Used by tests and one-shot commands that bring their own engine or
// store.
func NewWithCollaborators(cfg *config.Config, logger *events.Logger, engine raster.Engine, libStore store.Store, catalog state.Store, cache storage.BlobCache) *Client {
	thumbs := thumbnail.NewGenerator(engine, logger)
	return &Client{
		Shelf:   shelf.NewService(libStore, thumbs, cache, catalog, logger),
		Viewer:  viewer.NewService(engine, cfg.Viewer, logger),
		Thumbs:  thumbs,
		Store:   libStore,
		config:  cfg,
		logger:  logger,
		catalog: catalog,
		cache:   cache,
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger *events.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewCloudStore(ctx, &cfg.Store, logger)
	case "memory":
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newCatalog(cfg *config.Config, logger *events.Logger) (state.Store, error) {
	if cfg.Cache.CatalogPath == "" {
		return state.NewMemStore(), nil
	}
	return state.NewSQLiteStore(cfg.Cache.CatalogPath, logger)
}

func newBlobCache(cfg *config.Config, logger *events.Logger) (storage.BlobCache, error) {
	if !cfg.Cache.KeepDownloads {
		return storage.NewMemCache(), nil
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewDiskCache(cfg.Cache.Dir, logger)
}

// OpenEntry resolves an entry to document bytes and opens a viewer
// session on them. Any previously active session is closed first, so
// its in-flight renders are cancelled before the new load begins. The
// session is returned even when the load fails, in the failed state,
// together with the error.
func (c *Client) OpenEntry(ctx context.Context, id string) (*viewer.Session, error) {
	entry, err := c.Shelf.Entry(id)
	if err != nil {
		return nil, err
	}

	c.CloseViewer()

	data, err := c.Shelf.ResolveBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", id, err)
	}

	sess, err := c.Viewer.Open(ctx, data)

	c.mu.Lock()
	c.active = sess
	c.activeID = id
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"entry_id": id,
		"name":     entry.DisplayName,
	}).Info("Entry opened")
	return sess, err
}

// ActiveSession returns the current viewer session, or nil.
func (c *Client) ActiveSession() *viewer.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ActiveEntryID returns the id of the entry in the active session.
func (c *Client) ActiveEntryID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// CloseViewer closes the active session, if any, releasing its
// document and cancelling in-flight renders.
func (c *Client) CloseViewer() {
	c.mu.Lock()
	sess := c.active
	c.active = nil
	c.activeID = ""
	c.mu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			c.logger.WithError(err).Warn("Viewer session close failed")
		}
	}
}

// Close shuts the client down: the active session, the shelf (waiting
// for background uploads and deletes), and the stores.
func (c *Client) Close() error {
	c.CloseViewer()

	var firstErr error
	if err := c.Shelf.Close(); err != nil {
		firstErr = err
	}
	if err := c.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
