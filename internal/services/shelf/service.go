// Package shelf owns the library listing: the ordered entry list, the
// optimistic add protocol, non-blocking removal, and blob resolution.
package shelf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/models"
	"github.com/avoswald/folio/internal/services/thumbnail"
	"github.com/avoswald/folio/internal/state"
	"github.com/avoswald/folio/internal/storage"
	"github.com/avoswald/folio/internal/store"
)

// AcceptedType is the only declared media type the shelf accepts.
// Matching is exact; the shelf never sniffs content.
const AcceptedType = "application/pdf"

// FileInput is one file handed to AddFiles.
type FileInput struct {
	Name string
	Type string
	Data []byte
}

// AddOutcome is the synchronous result of adding one file: either a
// placeholder entry now on the shelf, or the reason the file was
// skipped. Upload completion arrives later as an EntryReady or
// EntryFailed event.
type AddOutcome struct {
	Name    string
	Entry   *models.Entry
	Skipped bool
	Reason  string
}

// EventType identifies shelf events.
type EventType string

const (
	EventEntryAdded   EventType = "entry_added"
	EventEntryReady   EventType = "entry_ready"
	EventEntryFailed  EventType = "entry_failed"
	EventEntryRemoved EventType = "entry_removed"
	EventRefreshed    EventType = "refreshed"
)

// Event is one shelf change notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Entry     *models.Entry
	Err       error
}

// Service manages the entry list. All mutations go through it; the
// list order is the display order.
type Service struct {
	store   store.Store
	thumbs  *thumbnail.Generator
	cache   storage.BlobCache
	catalog state.Store
	logger  *events.Logger

	mu           sync.Mutex
	entries      []*models.Entry
	closed       bool
	eventsClosed bool

	events chan Event
	wg     sync.WaitGroup
}

// NewService creates a shelf service.
func NewService(st store.Store, thumbs *thumbnail.Generator, cache storage.BlobCache, catalog state.Store, logger *events.Logger) *Service {
	return &Service{
		store:   st,
		thumbs:  thumbs,
		cache:   cache,
		catalog: catalog,
		logger:  logger.WithField("service", "shelf"),
		events:  make(chan Event, 100),
	}
}

// Events returns the event channel. Events are dropped, never
// blocked on, when the consumer falls behind.
func (s *Service) Events() <-chan Event {
	return s.events
}

// Entries returns a snapshot of the list in display order. Blob bytes
// are not included; use ResolveBlob.
func (s *Service) Entries() []*models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*models.Entry, len(s.entries))
	for i, entry := range s.entries {
		e := *entry
		e.LocalBlob = nil
		snapshot[i] = &e
	}
	return snapshot
}

// Entry returns a snapshot of one entry.
func (s *Service) Entry(id string) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.ID == id {
			e := *entry
			e.LocalBlob = nil
			return &e, nil
		}
	}
	return nil, models.ErrEntryNotFound
}

// Refresh replaces the persisted part of the list with the remote
// listing, oldest first. Placeholders with uploads still in flight
// keep their place after the listed rows; a placeholder whose row
// already appears in the listing is dropped in favor of the server
// row.
func (s *Service) Refresh(ctx context.Context) error {
	s.logger.Debug("Fetching library listing")

	rows, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh listing: %w", err)
	}

	listed := make([]*models.Entry, len(rows))
	listedIDs := make(map[string]bool, len(rows))
	for i, row := range rows {
		listed[i] = s.entryFromRecord(row)
		listedIDs[row.ID] = true
	}

	s.mu.Lock()
	merged := make([]*models.Entry, 0, len(listed)+4)
	merged = append(merged, listed...)
	for _, entry := range s.entries {
		if entry.Placeholder && !listedIDs[entry.ID] {
			merged = append(merged, entry)
		}
	}
	s.entries = merged
	snapshot := s.persistedSnapshotLocked()
	s.mu.Unlock()

	s.saveCatalog(snapshot)
	s.emitEvent(Event{Type: EventRefreshed})

	s.logger.WithField("entries", len(listed)).Info("Listing refreshed")
	return nil
}

// Cached returns the catalog snapshot from the local cache without
// touching the network.
func (s *Service) Cached() (*state.Catalog, error) {
	return s.catalog.Load()
}

// AddFiles runs the optimistic add protocol for each file: reject
// anything not declared application/pdf, append a placeholder to the
// list, and upload in the background. Each file is independent; one
// failed upload never disturbs its neighbors.
func (s *Service) AddFiles(ctx context.Context, files []FileInput) ([]AddOutcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("shelf closed")
	}
	s.mu.Unlock()

	outcomes := make([]AddOutcome, 0, len(files))
	for _, file := range files {
		outcome := s.addOne(ctx, file)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *Service) addOne(ctx context.Context, file FileInput) AddOutcome {
	name := models.NormalizeName(file.Name)

	if file.Type != AcceptedType {
		s.logger.WithFields(map[string]interface{}{
			"name": name,
			"type": file.Type,
		}).Info("Skipping file with unsupported type")
		return AddOutcome{Name: name, Skipped: true, Reason: fmt.Sprintf("unsupported type %q", file.Type)}
	}
	if name == "" {
		return AddOutcome{Name: file.Name, Skipped: true, Reason: "missing file name"}
	}
	if len(file.Data) == 0 {
		return AddOutcome{Name: name, Skipped: true, Reason: "empty file"}
	}

	entry := models.NewPlaceholder(uuid.NewString(), name, file.Data)

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	added := *entry
	added.LocalBlob = nil
	s.emitEvent(Event{Type: EventEntryAdded, Entry: &added})

	s.wg.Add(1)
	go s.uploadEntry(ctx, entry.ID, name, file.Data)

	return AddOutcome{Name: name, Entry: &added}
}

// uploadEntry persists one placeholder: thumbnail, blob upload, row
// insert, then in-place reconcile. Any failure rolls the placeholder
// back out of the list.
func (s *Service) uploadEntry(ctx context.Context, id, name string, data []byte) {
	defer s.wg.Done()

	log := s.logger.WithField("entry_id", id)

	thumb := s.thumbs.Generate(ctx, data)

	rec, err := s.store.Upload(ctx, id, name, data, store.Metadata{
		Name:      name,
		Thumbnail: thumb,
	})
	if err != nil {
		s.rollback(id, name, err)
		return
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		// Removed while the upload was in flight; the stored row
		// must not resurface on the next refresh.
		s.mu.Unlock()
		log.Info("Entry removed during upload, deleting stored row")
		s.deleteRemote(rec.ID)
		return
	}

	entry := s.entries[idx]
	entry.ID = rec.ID
	entry.Placeholder = false
	entry.DisplayName = rec.Name
	entry.SizeBytes = rec.Size
	entry.Thumbnail = rec.Thumbnail
	entry.RemoteLocator = rec.Locator
	entry.PublicURL = s.store.PublicURL(rec.Locator)
	entry.CreatedAt = rec.CreatedAt
	ready := *entry
	ready.LocalBlob = nil
	snapshot := s.persistedSnapshotLocked()
	s.mu.Unlock()

	if err := s.cache.Put(rec.ID, data); err != nil {
		log.WithError(err).Debug("Blob cache write failed")
	}
	s.saveCatalog(snapshot)

	log.WithField("locator", rec.Locator).Info("Entry persisted")
	s.emitEvent(Event{Type: EventEntryReady, Entry: &ready})
}

// rollback removes a failed placeholder and reports the failure.
func (s *Service) rollback(id, name string, cause error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	var removed *models.Entry
	if idx >= 0 {
		e := *s.entries[idx]
		e.LocalBlob = nil
		removed = &e
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	}
	s.mu.Unlock()

	s.logger.WithError(cause).WithFields(map[string]interface{}{
		"entry_id": id,
		"name":     name,
	}).Error("Upload failed, rolling back placeholder")

	if removed == nil {
		removed = &models.Entry{ID: id, DisplayName: name}
	}
	s.emitEvent(Event{Type: EventEntryFailed, Entry: removed, Err: cause})
}

// Remove takes the entry off the shelf immediately and deletes the
// remote row in the background. Remote failures are logged, never
// surfaced; the user's shelf has already moved on.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.ErrEntryNotFound
	}

	entry := s.entries[idx]
	wasPersisted := entry.Persisted()
	removed := *entry
	removed.LocalBlob = nil
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	snapshot := s.persistedSnapshotLocked()
	s.mu.Unlock()

	if err := s.cache.Delete(id); err != nil {
		s.logger.WithError(err).Debug("Blob cache delete failed")
	}
	s.saveCatalog(snapshot)
	s.emitEvent(Event{Type: EventEntryRemoved, Entry: &removed})

	if wasPersisted {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deleteRemote(id)
		}()
	}
	// An in-flight placeholder needs no remote call here: its upload
	// goroutine sees the entry is gone and deletes the stored row.

	return nil
}

// ResolveBlob returns the document bytes for an entry, from memory,
// the local cache, or the remote store, in that order.
func (s *Service) ResolveBlob(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	var entry *models.Entry
	if idx := s.indexLocked(id); idx >= 0 {
		entry = s.entries[idx]
	}
	if entry == nil {
		s.mu.Unlock()
		return nil, models.ErrEntryNotFound
	}
	if len(entry.LocalBlob) > 0 {
		data := append([]byte(nil), entry.LocalBlob...)
		s.mu.Unlock()
		return data, nil
	}
	locator := entry.RemoteLocator
	s.mu.Unlock()

	if locator == "" {
		return nil, models.ErrEntryNotOpenable
	}

	if data, err := s.cache.Get(id); err == nil {
		return data, nil
	}

	data, err := s.store.Download(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("resolve entry %s: %w", id, err)
	}

	if err := s.cache.Put(id, data); err != nil {
		s.logger.WithError(err).Debug("Blob cache write failed")
	}
	return data, nil
}

// Flush waits for in-flight uploads and deletes.
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for background work and closes the event channel.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.eventsClosed = true
	close(s.events)
	s.mu.Unlock()
	return nil
}

// indexLocked finds an entry position. Callers hold s.mu.
func (s *Service) indexLocked(id string) int {
	for i, entry := range s.entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}

// persistedSnapshotLocked copies the persisted entries for the
// catalog cache. Callers hold s.mu.
func (s *Service) persistedSnapshotLocked() []*models.Entry {
	snapshot := make([]*models.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if !entry.Persisted() {
			continue
		}
		e := *entry
		e.LocalBlob = nil
		snapshot = append(snapshot, &e)
	}
	return snapshot
}

func (s *Service) entryFromRecord(rec *store.Record) *models.Entry {
	return &models.Entry{
		ID:            rec.ID,
		DisplayName:   rec.Name,
		SizeBytes:     rec.Size,
		Thumbnail:     rec.Thumbnail,
		RemoteLocator: rec.Locator,
		PublicURL:     s.store.PublicURL(rec.Locator),
		CreatedAt:     rec.CreatedAt,
	}
}

// saveCatalog mirrors the persisted entries into the local cache.
// Cache trouble is logged and swallowed; the shelf is already right.
func (s *Service) saveCatalog(snapshot []*models.Entry) {
	if err := s.catalog.Save(snapshot); err != nil {
		s.logger.WithError(err).Warn("Catalog cache write failed")
	}
}

// deleteRemote removes a stored row with its own deadline, detached
// from whatever request context triggered it.
func (s *Service) deleteRemote(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("entry_id", id).Warn("Remote delete failed")
	}
}

// emitEvent delivers an event without ever blocking a mutation.
func (s *Service) emitEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventsClosed {
		return
	}

	event.Timestamp = time.Now()
	select {
	case s.events <- event:
	default:
		s.logger.Debug("Event channel full, dropping event")
	}
}
