// Package thumbnail renders the first page of a document into a
// small data-URL image for the shelf. Generation never fails: any
// problem yields an empty string and the shelf shows its fallback
// tile instead.
package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/raster"
)

// DefaultBoxSize is the bounding box edge for generated thumbnails,
// in pixels.
const DefaultBoxSize = 256

// renderOversample renders larger than the target box and downscales,
// which reads better than rendering at target size directly.
const renderOversample = 2

// Generator produces shelf thumbnails.
type Generator struct {
	engine raster.Engine
	box    int
	logger *events.Logger
}

// NewGenerator creates a thumbnail generator.
func NewGenerator(engine raster.Engine, logger *events.Logger) *Generator {
	return &Generator{
		engine: engine,
		box:    DefaultBoxSize,
		logger: logger.WithField("component", "thumbnail"),
	}
}

// SetBoxSize overrides the bounding box edge.
func (g *Generator) SetBoxSize(px int) {
	if px > 0 {
		g.box = px
	}
}

// Generate returns a data:image/png;base64 URL for the first page, or
// "" when the document cannot be thumbnailed. It never returns an
// error; a missing thumbnail is a presentation detail, not a failure.
func (g *Generator) Generate(ctx context.Context, data []byte) (out string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithField("panic", r).Warn("Thumbnail generation panicked")
			out = ""
		}
	}()

	doc, err := g.engine.Parse(ctx, data)
	if err != nil {
		g.logger.WithError(err).Debug("Thumbnail parse failed")
		return ""
	}
	defer doc.Close()

	size, err := doc.PageSize(1)
	if err != nil || size.W <= 0 || size.H <= 0 {
		return ""
	}

	longest := math.Max(size.W, size.H)
	scale := float64(g.box*renderOversample) / longest

	img, err := doc.RenderPage(ctx, 1, scale)
	if err != nil {
		g.logger.WithError(err).Debug("Thumbnail render failed")
		return ""
	}

	thumb := g.fitToBox(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		g.logger.WithError(err).Debug("Thumbnail encode failed")
		return ""
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// fitToBox downscales an image to the bounding box, preserving aspect
// ratio. Images already inside the box pass through untouched.
func (g *Generator) fitToBox(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= g.box && h <= g.box {
		return img
	}

	longest := w
	if h > longest {
		longest = h
	}
	ratio := float64(g.box) / float64(longest)

	tw := int(math.Round(float64(w) * ratio))
	th := int(math.Round(float64(h) * ratio))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
