package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	tpdf "github.com/ledongthuc/pdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/models"
)

// Pages without a usable MediaBox fall back to US Letter.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// textCancelStride is how many text runs are drawn between context
// checks during a render.
const textCancelStride = 64

// PDFEngine rasterizes PDF documents in-process. Page geometry comes
// from the document's page tree; the visible raster is the page
// surface with the embedded text layer drawn at its recorded
// positions. Vector graphics and embedded images are not painted.
type PDFEngine struct {
	logger *events.Logger
}

// NewPDFEngine creates the in-process engine.
func NewPDFEngine(logger *events.Logger) *PDFEngine {
	return &PDFEngine{
		logger: logger.WithField("component", "raster_engine"),
	}
}

// Ready reports engine availability. The in-process engine has no
// startup phase, so this only honors context cancellation.
func (e *PDFEngine) Ready(ctx context.Context) error {
	return ctx.Err()
}

// Parse loads a document from raw bytes.
func (e *PDFEngine) Parse(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &models.ParseError{Err: errors.New("empty input")}
	}

	doc, err := pdf.Read(bytes.NewReader(data), nil)
	if err != nil {
		return nil, &models.ParseError{Err: err}
	}

	pages, err := pagetree.NumPages(doc)
	if err != nil {
		return nil, &models.ParseError{Err: fmt.Errorf("page tree: %w", err)}
	}
	if pages < 1 {
		return nil, &models.ParseError{Err: errors.New("document has no pages")}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The text layer is best-effort: a document whose content streams
	// cannot be read still renders, just with blank page surfaces.
	text := openTextLayer(data)
	if text == nil {
		e.logger.WithField("bytes", len(data)).Debug("Text layer unavailable")
	}

	e.logger.WithFields(map[string]interface{}{
		"pages": pages,
		"bytes": len(data),
	}).Debug("Parsed document")

	return &pdfDocument{
		doc:    doc,
		text:   text,
		pages:  pages,
		logger: e.logger,
	}, nil
}

// openTextLayer parses the text-extraction view of the document.
// ledongthuc/pdf panics on some malformed content streams, so failures
// of any kind collapse to a nil layer.
func openTextLayer(data []byte) (r *tpdf.Reader) {
	defer func() {
		if recover() != nil {
			r = nil
		}
	}()
	r, err := tpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}
	return r
}

// pdfDocument implements Document over a parsed file.
type pdfDocument struct {
	mu     sync.Mutex
	closed bool

	doc    *pdf.Data
	pages  int
	logger *events.Logger

	// textMu serializes text-layer extraction; the reader resolves
	// objects lazily and is not safe for concurrent page reads.
	textMu sync.Mutex
	text   *tpdf.Reader
}

// PageCount returns the number of pages.
func (d *pdfDocument) PageCount() int {
	return d.pages
}

// PageSize returns the natural page size at scale 1.0.
func (d *pdfDocument) PageSize(page int) (Size, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Size{}, models.ErrDocumentClosed
	}
	size, _, err := d.pageGeometry(page)
	return size, err
}

// pageGeometry resolves the page's size and rotation. Callers hold d.mu.
func (d *pdfDocument) pageGeometry(page int) (Size, int, error) {
	if page < 1 || page > d.pages {
		return Size{}, 0, fmt.Errorf("%w: page %d of %d", models.ErrPageOutOfRange, page, d.pages)
	}

	dict, err := pagetree.GetPage(d.doc, page-1)
	if err != nil {
		return Size{}, 0, &models.RenderError{Page: page, Err: fmt.Errorf("page dict: %w", err)}
	}

	size := Size{W: defaultPageWidth, H: defaultPageHeight}
	if rect, err := pdf.GetRectangle(d.doc, dict["MediaBox"]); err == nil && rect != nil {
		w := rect.URx - rect.LLx
		h := rect.URy - rect.LLy
		if w > 0 && h > 0 {
			size = Size{W: w, H: h}
		}
	}

	rotate := 0
	if rot, err := pdf.GetInteger(d.doc, dict["Rotate"]); err == nil {
		rotate = ((int(rot) % 360) + 360) % 360
	}
	if rotate == 90 || rotate == 270 {
		size.W, size.H = size.H, size.W
	}

	return size, rotate, nil
}

// RenderPage rasterizes one page.
func (d *pdfDocument) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, &models.RenderError{Page: page, Err: fmt.Errorf("invalid scale %v", scale)}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, models.ErrDocumentClosed
	}
	size, rotate, err := d.pageGeometry(page)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	img := newPageSurface(size, scale)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Rotated pages keep their rotated extent but skip the text
	// overlay; the positions recorded in the content stream are in
	// unrotated user space.
	if rotate == 0 {
		if err := d.drawTextLayer(ctx, img, page, size, scale); err != nil {
			return nil, err
		}
	}

	return img, nil
}

// Close releases the document. Safe to call more than once.
func (d *pdfDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.doc = nil

	d.textMu.Lock()
	d.text = nil
	d.textMu.Unlock()
	return nil
}

// newPageSurface allocates the page raster: white surface with a
// one-pixel border so adjacent pages stay distinguishable.
func newPageSurface(size Size, scale float64) *image.RGBA {
	w := int(math.Ceil(size.W * scale))
	h := int(math.Ceil(size.H * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	border := color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	for x := 0; x < w; x++ {
		img.SetRGBA(x, 0, border)
		img.SetRGBA(x, h-1, border)
	}
	for y := 0; y < h; y++ {
		img.SetRGBA(0, y, border)
		img.SetRGBA(w-1, y, border)
	}
	return img
}

// drawTextLayer paints the page's positioned text runs onto img.
func (d *pdfDocument) drawTextLayer(ctx context.Context, img *image.RGBA, page int, size Size, scale float64) error {
	runs := d.pageText(page)
	if len(runs) == 0 {
		return nil
	}

	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}),
		Face: basicfont.Face7x13,
	}

	for i, run := range runs {
		if i%textCancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if run.S == "" {
			continue
		}
		// PDF user space has its origin at the bottom-left corner;
		// the raster's is top-left.
		x := int(math.Round(run.X * scale))
		y := int(math.Round((size.H - run.Y) * scale))
		if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
			continue
		}
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(run.S)
	}
	return nil
}

// pageText extracts the positioned text runs for one page, containing
// any panic from the text-layer parser.
func (d *pdfDocument) pageText(page int) (runs []tpdf.Text) {
	d.textMu.Lock()
	defer d.textMu.Unlock()

	text := d.text
	if text == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(map[string]interface{}{
				"page":  page,
				"panic": fmt.Sprint(r),
			}).Debug("Text layer extraction failed")
			runs = nil
		}
	}()

	if page > text.NumPage() {
		return nil
	}
	p := text.Page(page)
	if p.V.IsNull() {
		return nil
	}
	return p.Content().Text
}
