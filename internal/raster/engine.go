// Package raster defines the boundary to the PDF rasterization engine.
//
// The engine is an injected capability: everything above this package
// (viewer, thumbnails, CLI) talks to the Engine and Document interfaces
// and never to a concrete PDF library. Production code wires PDFEngine;
// tests substitute scripted engines.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/avoswald/folio/internal/models"
)

// Size is the natural extent of a page in PDF points (1/72 inch) at
// scale 1.0. Raster dimensions are derived as ceil(Size * scale).
type Size struct {
	W float64
	H float64
}

// Engine parses raw PDF bytes into renderable documents.
type Engine interface {
	// Ready reports whether the engine can accept work. Callers that
	// need to tolerate slow engine startup should use WaitReady rather
	// than calling Ready once.
	Ready(ctx context.Context) error

	// Parse loads a document from raw bytes. A parse failure is
	// terminal for the document; per-page render failures are not.
	Parse(ctx context.Context, data []byte) (Document, error)
}

// Document is a parsed PDF ready for rasterization. Implementations
// must be safe for concurrent use; the viewer renders pages from
// multiple goroutines.
type Document interface {
	// PageCount returns the number of pages, always >= 1 for a
	// successfully parsed document.
	PageCount() int

	// PageSize returns the natural size of a page at scale 1.0.
	// Pages are numbered from 1.
	PageSize(page int) (Size, error)

	// RenderPage rasterizes one page at the given scale. The returned
	// image is owned by the caller. Cancelling ctx abandons the
	// render; a cancelled render must never be surfaced as a page
	// failure by callers.
	RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error)

	// Close releases document resources. Idempotent. Renders issued
	// after Close fail with models.ErrDocumentClosed.
	Close() error
}

// WaitReady polls eng.Ready until it succeeds, up to attempts probes
// spaced interval apart. It returns nil as soon as one probe succeeds,
// ctx.Err() if the context ends first, and an error wrapping
// models.ErrEngineUnavailable once the attempts are exhausted.
func WaitReady(ctx context.Context, eng Engine, attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = eng.Ready(ctx)
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("engine not ready")
	}
	return fmt.Errorf("%w after %d attempts: %v", models.ErrEngineUnavailable, attempts, lastErr)
}
