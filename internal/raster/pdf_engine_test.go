package raster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoswald/folio/internal/models"
	"github.com/avoswald/folio/internal/raster"
	"github.com/avoswald/folio/test/testutil"
)

func newEngine() *raster.PDFEngine {
	return raster.NewPDFEngine(testutil.NewTestLogger())
}

func TestPDFEngineParse(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.MinimalPDF(3))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 3, doc.PageCount())
}

func TestPDFEngineParseErrors(t *testing.T) {
	eng := newEngine()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is not a pdf")},
		{"truncated", testutil.MinimalPDF(1)[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := eng.Parse(context.Background(), tt.data)
			require.Error(t, err)
			assert.Nil(t, doc)

			var parseErr *models.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestPDFEngineParseCancelled(t *testing.T) {
	eng := newEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Parse(ctx, testutil.MinimalPDF(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFEnginePageSize(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.BuildPDF(testutil.PDFOptions{
		Pages:  2,
		Width:  595,
		Height: 842,
	}))
	require.NoError(t, err)
	defer doc.Close()

	size, err := doc.PageSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 595.0, size.W, 0.01)
	assert.InDelta(t, 842.0, size.H, 0.01)

	_, err = doc.PageSize(0)
	assert.ErrorIs(t, err, models.ErrPageOutOfRange)
	_, err = doc.PageSize(3)
	assert.ErrorIs(t, err, models.ErrPageOutOfRange)
}

func TestPDFEngineRotatedPageSwapsExtent(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.BuildPDF(testutil.PDFOptions{
		Pages:  1,
		Width:  612,
		Height: 792,
		Rotate: 90,
	}))
	require.NoError(t, err)
	defer doc.Close()

	size, err := doc.PageSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 792.0, size.W, 0.01)
	assert.InDelta(t, 612.0, size.H, 0.01)
}

func TestPDFEngineRenderPage(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.TextPDF(1, "Hello, world"))
	require.NoError(t, err)
	defer doc.Close()

	img, err := doc.RenderPage(context.Background(), 1, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 612, img.Bounds().Dx())
	assert.Equal(t, 792, img.Bounds().Dy())

	// Interior of the page surface is white.
	r, g, b, _ := img.At(300, 400).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}

func TestPDFEngineRenderScale(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.MinimalPDF(1))
	require.NoError(t, err)
	defer doc.Close()

	img, err := doc.RenderPage(context.Background(), 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 306, img.Bounds().Dx())
	assert.Equal(t, 396, img.Bounds().Dy())

	_, err = doc.RenderPage(context.Background(), 1, 0)
	require.Error(t, err)
	var renderErr *models.RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestPDFEngineRenderCancelled(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.MinimalPDF(1))
	require.NoError(t, err)
	defer doc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = doc.RenderPage(ctx, 1, 1.0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFEngineClose(t *testing.T) {
	eng := newEngine()

	doc, err := eng.Parse(context.Background(), testutil.MinimalPDF(1))
	require.NoError(t, err)

	require.NoError(t, doc.Close())
	require.NoError(t, doc.Close())

	_, err = doc.RenderPage(context.Background(), 1, 1.0)
	assert.ErrorIs(t, err, models.ErrDocumentClosed)

	_, err = doc.PageSize(1)
	assert.ErrorIs(t, err, models.ErrDocumentClosed)
}

func TestPDFEngineReady(t *testing.T) {
	eng := newEngine()
	assert.NoError(t, eng.Ready(context.Background()))

	err := raster.WaitReady(context.Background(), eng, 20, 0)
	assert.NoError(t, err)
}
