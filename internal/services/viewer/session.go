package viewer

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avoswald/folio/internal/config"
	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/models"
	"github.com/avoswald/folio/internal/raster"
)

// Session is one open document. It owns the parsed document
// exclusively; all state lives behind the mutex and every operation
// is safe for concurrent use.
type Session struct {
	cfg    config.ViewerConfig
	logger *events.Logger

	mu           sync.Mutex
	state        LoadState
	loadErr      error
	closed       bool
	eventsClosed bool

	doc       raster.Document
	pageCount int
	sizes     []raster.Size // natural page sizes at scale 1

	currentPage  int
	scale        float64 // requested scale; tracks fit when fitMode
	appliedScale float64 // scale of the most recent applied raster
	fitMode      bool
	mode         Mode
	axis         Axis

	containerW   float64
	containerH   float64
	pixelRatio   float64
	scrollOffset float64

	surfaces map[int]*Surface
	slots    map[int]*renderSlot
	gen      uint64

	baseCtx   context.Context
	cancelAll context.CancelFunc

	events chan Event
}

type renderSlot struct {
	cancel context.CancelFunc
	gen    uint64
}

func newSession(cfg config.ViewerConfig, logger *events.Logger) *Session {
	return &Session{
		cfg:          cfg,
		logger:       logger,
		state:        StateLoading,
		currentPage:  1,
		scale:        1.0,
		appliedScale: 1.0,
		fitMode:      true,
		mode:         ModeSingle,
		axis:         AxisVertical,
		containerW:   defaultContainerWidth,
		containerH:   defaultContainerHeight,
		pixelRatio:   cfg.PixelRatio,
		surfaces:     make(map[int]*Surface),
		slots:        make(map[int]*renderSlot),
		events:       make(chan Event, 100),
	}
}

// fail marks the session terminally failed. Called once, before the
// session is handed to the caller.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.loadErr = err
	s.mu.Unlock()

	s.logger.WithError(err).Error("Viewer session failed to load")
	s.emit(Event{Type: EventSessionFailed, Err: err})
}

// ready installs the parsed document and issues the first render
// pass. Called once, before the session is handed to the caller.
func (s *Session) ready(doc raster.Document, sizes []raster.Size) {
	base, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.doc = doc
	s.pageCount = len(sizes)
	s.sizes = sizes
	s.baseCtx = base
	s.cancelAll = cancel
	s.state = StateReady
	s.renderVisibleLocked()
	s.mu.Unlock()

	s.logger.WithField("pages", len(sizes)).Info("Viewer session ready")
	s.emit(Event{Type: EventSessionReady, Page: 1})
}

// Events returns the event channel. Events are dropped, never
// blocked on, when the consumer falls behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State reports the load state.
func (s *Session) State() LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err reports why the session failed, if it did.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// PageCount reports the number of pages; zero until ready.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCount
}

// CurrentPage reports the 1-indexed current page.
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

// Scale reports the requested scale (fit-tracked when fit is on).
func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// ZoomPercent reports the scale of the most recent applied raster,
// never a stale requested value.
func (s *Session) ZoomPercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(math.Round(s.appliedScale * 100))
}

// FitMode reports whether scale auto-tracks the container.
func (s *Session) FitMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fitMode
}

// Mode reports the layout mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Axis reports the scroll axis.
func (s *Session) Axis() Axis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axis
}

// ScrollOffset reports the viewport offset along the scroll axis.
func (s *Session) ScrollOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollOffset
}

// PageSize returns the natural size of a page at scale 1.
func (s *Session) PageSize(page int) (raster.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 || page > s.pageCount {
		return raster.Size{}, models.ErrPageOutOfRange
	}
	return s.sizes[page-1], nil
}

// Surface returns the last applied raster for a page, if any.
func (s *Session) Surface(page int) (*Surface, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	surface, ok := s.surfaces[page]
	if !ok {
		return nil, false
	}
	out := *surface
	return &out, true
}

// SetContainerSize records the container dimensions. While fit is on
// this recomputes the scale and re-renders; while it is off the
// scale must not move.
func (s *Session) SetContainerSize(w, h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.containerW, s.containerH = w, h
	if s.readyLocked() && s.fitMode {
		s.renderVisibleLocked()
	}
}

// ZoomIn steps the scale up and disables fit.
func (s *Session) ZoomIn() float64 {
	return s.zoomBy(s.cfg.ZoomStep)
}

// ZoomOut steps the scale down and disables fit.
func (s *Session) ZoomOut() float64 {
	return s.zoomBy(-s.cfg.ZoomStep)
}

func (s *Session) zoomBy(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() {
		return s.scale
	}

	s.fitMode = false
	s.scale = s.clampScale(s.scale + delta)
	s.renderVisibleLocked()
	return s.scale
}

// FitToContainer re-enables fit; the next render pass recomputes the
// scale from the current container size.
func (s *Session) FitToContainer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() {
		return
	}
	s.fitMode = true
	s.renderVisibleLocked()
}

// GoTo navigates to page n, clamped to [1, pageCount], and returns
// the applied page. Single mode renders the target page; continuous
// mode centers it in the viewport instead.
func (s *Session) GoTo(n int) int {
	s.mu.Lock()
	if !s.readyLocked() {
		cur := s.currentPage
		s.mu.Unlock()
		return cur
	}

	if n < 1 {
		n = 1
	} else if n > s.pageCount {
		n = s.pageCount
	}
	changed := n != s.currentPage
	s.currentPage = n

	if s.mode == ModeContinuous {
		s.centerOnPageLocked(n)
	} else if changed || s.surfaces[n] == nil {
		s.requestRenderLocked(n)
	}
	s.mu.Unlock()

	if changed {
		s.emit(Event{Type: EventPageChanged, Page: n})
	}
	return n
}

// CommitPageInput applies a manual page-number entry. Valid input
// navigates; non-numeric or out-of-range input leaves the state
// untouched and returns the current page so the displayed text
// reverts — invalid input is never silently clamped.
func (s *Session) CommitPageInput(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))

	s.mu.Lock()
	current := s.currentPage
	count := s.pageCount
	ready := s.readyLocked()
	s.mu.Unlock()

	if err != nil || !ready || n < 1 || n > count {
		return current
	}
	return s.GoTo(n)
}

// Scroll records a new viewport offset and re-derives the current
// page by the nearest-center rule. It only moves the page indicator;
// it never issues a render.
func (s *Session) Scroll(offset float64) int {
	s.mu.Lock()
	if !s.readyLocked() || s.mode != ModeContinuous {
		cur := s.currentPage
		s.mu.Unlock()
		return cur
	}

	s.scrollOffset = offset
	center := offset + s.viewportExtentLocked()/2
	page := nearestPage(s.layoutLocked(), center)
	changed := page != s.currentPage
	s.currentPage = page
	s.mu.Unlock()

	if changed {
		s.emit(Event{Type: EventPageChanged, Page: page})
	}
	return page
}

// SetAxis switches the scroll axis. Fit is re-enabled because the
// fit computation is axis-dependent, and visible pages re-render.
func (s *Session) SetAxis(axis Axis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() || s.axis == axis {
		return
	}
	s.axis = axis
	s.fitMode = true
	s.renderVisibleLocked()
}

// SetMode switches between single-page and continuous layout and
// renders whatever just became visible.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() || s.mode == mode {
		return
	}
	s.mode = mode
	s.renderVisibleLocked()
}

// RequestRender issues the render protocol for specific pages.
// Out-of-range pages are ignored.
func (s *Session) RequestRender(pages ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() {
		return
	}
	for _, page := range pages {
		if page < 1 || page > s.pageCount {
			continue
		}
		s.requestRenderLocked(page)
	}
}

// Close cancels in-flight renders, releases the document, and closes
// the event channel. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, slot := range s.slots {
		slot.cancel()
	}
	s.slots = make(map[int]*renderSlot)
	doc := s.doc
	s.doc = nil
	cancel := s.cancelAll
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if doc != nil {
		err = doc.Close()
	}

	s.mu.Lock()
	s.eventsClosed = true
	close(s.events)
	s.mu.Unlock()

	s.logger.Debug("Viewer session closed")
	return err
}

// readyLocked reports whether operations may act: loaded and not yet
// closed. Callers hold s.mu.
func (s *Session) readyLocked() bool {
	return s.state == StateReady && !s.closed
}

// emit delivers an event without ever blocking an operation.
func (s *Session) emit(event Event) {
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

func (s *Session) clampScale(scale float64) float64 {
	if scale < s.cfg.MinScale {
		return s.cfg.MinScale
	}
	if scale > s.cfg.MaxScale {
		return s.cfg.MaxScale
	}
	return scale
}
