// Package viewer owns a document reading session: load state, page
// rasterization with per-page render slots, zoom and fit tracking,
// pagination, and continuous-scroll page sync.
package viewer

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/avoswald/folio/internal/config"
	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/raster"
)

// Neutral geometry used until the caller reports real container
// dimensions.
const (
	defaultContainerWidth  = 800.0
	defaultContainerHeight = 600.0
)

// LoadState is the session lifecycle state.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
)

// Mode selects how many pages are visible at once.
type Mode string

const (
	ModeSingle     Mode = "single"
	ModeContinuous Mode = "continuous"
)

// Axis is the scroll axis in continuous mode. Fit computation
// depends on it: vertical layouts fit to the container width,
// horizontal layouts to its height.
type Axis string

const (
	AxisVertical   Axis = "vertical"
	AxisHorizontal Axis = "horizontal"
)

// EventType identifies viewer events.
type EventType string

const (
	EventSessionReady  EventType = "session_ready"
	EventSessionFailed EventType = "session_failed"
	EventRasterApplied EventType = "raster_applied"
	EventRenderFailed  EventType = "render_failed"
	EventPageChanged   EventType = "page_changed"
	EventScaleChanged  EventType = "scale_changed"
)

// Event is one viewer notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Page      int
	Scale     float64
	Err       error
}

// Surface is the last applied raster for a page. Pixel dimensions
// are the raster's; display dimensions divide out the pixel ratio so
// the on-screen size matches the logical scale.
type Surface struct {
	Page   int
	Image  *image.RGBA
	Width  float64
	Height float64
	Scale  float64
}

// Service opens viewer sessions against a rasterization engine.
type Service struct {
	engine raster.Engine
	cfg    config.ViewerConfig
	logger *events.Logger
}

// NewService creates a viewer service.
func NewService(engine raster.Engine, cfg config.ViewerConfig, logger *events.Logger) *Service {
	return &Service{
		engine: engine,
		cfg:    cfg,
		logger: logger.WithField("service", "viewer"),
	}
}

// Open waits for the engine (bounded poll), parses the blob, and
// returns a session. On failure the session is still returned, in
// the failed state, so callers keep an inspectable error affordance;
// the same error is returned directly for convenience. A failed
// session holds no resources and never retries.
func (s *Service) Open(ctx context.Context, data []byte) (*Session, error) {
	sess := newSession(s.cfg, s.logger)

	if err := raster.WaitReady(ctx, s.engine, s.cfg.EnginePollAttempts, s.cfg.EnginePollInterval); err != nil {
		sess.fail(err)
		return sess, err
	}

	doc, err := s.engine.Parse(ctx, data)
	if err != nil {
		sess.fail(fmt.Errorf("parse document: %w", err))
		return sess, err
	}

	count := doc.PageCount()
	if count < 1 {
		_ = doc.Close()
		err := fmt.Errorf("parse document: no pages")
		sess.fail(err)
		return sess, err
	}

	sizes := make([]raster.Size, count)
	for i := range sizes {
		size, err := doc.PageSize(i + 1)
		if err != nil {
			s.logger.WithError(err).WithField("page", i+1).Debug("Page size unavailable, using default")
			size = raster.Size{W: 612, H: 792}
		}
		sizes[i] = size
	}

	sess.ready(doc, sizes)
	return sess, nil
}
