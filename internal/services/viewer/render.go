package viewer

import (
	"context"
	"math"

	"github.com/avoswald/folio/internal/raster"
)

// requestRenderLocked starts the render protocol for one page slot:
// cancel whatever the slot still has in flight, bump the generation,
// and render at the effective scale. Callers hold s.mu.
func (s *Session) requestRenderLocked(page int) {
	if s.closed || s.doc == nil {
		return
	}
	if prev, ok := s.slots[page]; ok {
		prev.cancel()
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.slots[page] = &renderSlot{cancel: cancel, gen: gen}

	scale := s.effectiveScaleLocked(page)
	doc := s.doc

	go s.renderPage(ctx, doc, page, gen, scale)
}

// renderPage runs one slot generation to completion. A superseded or
// cancelled result is discarded silently — it is not an error and it
// never draws. Only the generation that still owns the slot applies.
func (s *Session) renderPage(ctx context.Context, doc raster.Document, page int, gen uint64, scale float64) {
	img, err := doc.RenderPage(ctx, page, scale*s.pixelRatio)

	s.mu.Lock()
	slot, ok := s.slots[page]
	if !ok || slot.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.slots, page)

	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.WithError(err).WithField("page", page).Warn("Page render failed")
		s.emit(Event{Type: EventRenderFailed, Page: page, Err: err})
		return
	}

	bounds := img.Bounds()
	s.surfaces[page] = &Surface{
		Page:   page,
		Image:  img,
		Width:  float64(bounds.Dx()) / s.pixelRatio,
		Height: float64(bounds.Dy()) / s.pixelRatio,
		Scale:  scale,
	}
	scaleChanged := s.appliedScale != scale
	s.appliedScale = scale
	if s.fitMode {
		s.scale = scale
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventRasterApplied, Page: page, Scale: scale})
	if scaleChanged {
		s.emit(Event{Type: EventScaleChanged, Scale: scale})
	}
}

// renderVisibleLocked re-runs the render protocol for every visible
// page. Callers hold s.mu.
func (s *Session) renderVisibleLocked() {
	for _, page := range s.visiblePagesLocked() {
		s.requestRenderLocked(page)
	}
}

// visiblePagesLocked is the render set: the current page in single
// mode, every page in continuous mode. Callers hold s.mu.
func (s *Session) visiblePagesLocked() []int {
	if s.mode == ModeContinuous {
		pages := make([]int, s.pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}
	return []int{s.currentPage}
}

// effectiveScaleLocked computes the scale the render protocol uses
// for a page: the fit computation (container dimension over natural
// dimension, axis-dependent) while fit is on, the manual scale
// otherwise, both clamped. Callers hold s.mu.
func (s *Session) effectiveScaleLocked(page int) float64 {
	if !s.fitMode {
		return s.clampScale(s.scale)
	}

	natural := s.sizes[page-1]
	var scale float64
	if s.axis == AxisVertical {
		scale = s.containerW / natural.W
	} else {
		scale = s.containerH / natural.H
	}
	return s.clampScale(scale)
}

// pageExtent is one page's span along the scroll axis, in display
// units.
type pageExtent struct {
	start float64
	size  float64
}

// layoutLocked lays every page along the scroll axis at its
// effective scale, separated by the configured gap. Callers hold
// s.mu.
func (s *Session) layoutLocked() []pageExtent {
	extents := make([]pageExtent, s.pageCount)
	offset := 0.0
	for i := range extents {
		natural := s.sizes[i]
		scale := s.effectiveScaleLocked(i + 1)

		size := natural.H * scale
		if s.axis == AxisHorizontal {
			size = natural.W * scale
		}

		extents[i] = pageExtent{start: offset, size: size}
		offset += size + s.cfg.PageGap
	}
	return extents
}

// viewportExtentLocked is the container dimension along the scroll
// axis. Callers hold s.mu.
func (s *Session) viewportExtentLocked() float64 {
	if s.axis == AxisHorizontal {
		return s.containerW
	}
	return s.containerH
}

// centerOnPageLocked moves the scroll offset so the page's extent is
// centered in the viewport, clamped to the content bounds. Callers
// hold s.mu.
func (s *Session) centerOnPageLocked(page int) {
	extents := s.layoutLocked()
	if len(extents) == 0 {
		return
	}

	view := s.viewportExtentLocked()
	ext := extents[page-1]
	offset := ext.start + ext.size/2 - view/2

	last := extents[len(extents)-1]
	maxOffset := last.start + last.size - view
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		offset = maxOffset
	}
	if offset < 0 {
		offset = 0
	}
	s.scrollOffset = offset
}

// nearestPage picks the page whose center is closest to the viewport
// center along the scroll axis. Ties break to the lowest page number
// because the scan is ascending and only a strictly smaller distance
// wins.
func nearestPage(extents []pageExtent, viewportCenter float64) int {
	best := 1
	bestDist := math.Inf(1)
	for i, ext := range extents {
		center := ext.start + ext.size/2
		dist := math.Abs(center - viewportCenter)
		if dist < bestDist {
			best = i + 1
			bestDist = dist
		}
	}
	return best
}
