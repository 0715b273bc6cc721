package viewer_test

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoswald/folio/internal/config"
	"github.com/avoswald/folio/internal/models"
	"github.com/avoswald/folio/internal/raster"
	"github.com/avoswald/folio/internal/services/viewer"
	"github.com/avoswald/folio/test/testutil"
)

// fakeDoc is a scriptable document: renders can be gated, fail per
// page, and every call is recorded.
type fakeDoc struct {
	mu        sync.Mutex
	sizes     []raster.Size
	gate      chan struct{}
	failPages map[int]error
	started   int
	completed int
	closed    bool
}

func newFakeDoc(pages int, w, h float64) *fakeDoc {
	sizes := make([]raster.Size, pages)
	for i := range sizes {
		sizes[i] = raster.Size{W: w, H: h}
	}
	return &fakeDoc{sizes: sizes, failPages: make(map[int]error)}
}

func (d *fakeDoc) PageCount() int { return len(d.sizes) }

func (d *fakeDoc) PageSize(page int) (raster.Size, error) {
	if page < 1 || page > len(d.sizes) {
		return raster.Size{}, models.ErrPageOutOfRange
	}
	return d.sizes[page-1], nil
}

func (d *fakeDoc) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	d.mu.Lock()
	d.started++
	gate := d.gate
	failure := d.failPages[page]
	size := d.sizes[page-1]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}

	d.mu.Lock()
	d.completed++
	d.mu.Unlock()

	w := int(math.Ceil(size.W * scale))
	h := int(math.Ceil(size.H * scale))
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDoc) startedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func (d *fakeDoc) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDoc) completedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

// fakeEngine hands out a fixed document.
type fakeEngine struct {
	doc      *fakeDoc
	readyErr error
	parseErr error
}

func (e *fakeEngine) Ready(ctx context.Context) error {
	if e.readyErr != nil {
		return e.readyErr
	}
	return ctx.Err()
}

func (e *fakeEngine) Parse(ctx context.Context, data []byte) (raster.Document, error) {
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	return e.doc, nil
}

var _ raster.Engine = (*fakeEngine)(nil)

func testViewerConfig() config.ViewerConfig {
	cfg := config.DefaultConfig().Viewer
	cfg.EnginePollAttempts = 3
	cfg.EnginePollInterval = time.Millisecond
	return cfg
}

func openSession(t *testing.T, doc *fakeDoc) *viewer.Session {
	t.Helper()

	svc := viewer.NewService(&fakeEngine{doc: doc}, testViewerConfig(), testutil.NewTestLogger())
	sess, err := svc.Open(context.Background(), []byte("%PDF-stub"))
	require.NoError(t, err)
	require.Equal(t, viewer.StateReady, sess.State())
	return sess
}

// waitApplied blocks until a surface for the page exists at the
// wanted scale.
func waitApplied(t *testing.T, sess *viewer.Session, page int, scale float64) {
	t.Helper()
	testutil.WaitForCondition(t, func() bool {
		surface, ok := sess.Surface(page)
		return ok && math.Abs(surface.Scale-scale) < 1e-9
	}, 5*time.Second, "raster applied")
}

// drainEvents empties the event buffer.
func drainEvents(sess *viewer.Session) []viewer.Event {
	var out []viewer.Event
	for {
		select {
		case ev := <-sess.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestOpen_Ready(t *testing.T) {
	doc := newFakeDoc(3, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	assert.Equal(t, 3, sess.PageCount())
	assert.Equal(t, 1, sess.CurrentPage())
	assert.True(t, sess.FitMode())
	assert.Equal(t, viewer.ModeSingle, sess.Mode())

	// Fit against the default 800-wide container.
	wantScale := 800.0 / 612.0
	waitApplied(t, sess, 1, wantScale)

	surface, ok := sess.Surface(1)
	require.True(t, ok)
	assert.Equal(t, 1, surface.Page)
	assert.Equal(t, int(math.Ceil(612*wantScale)), surface.Image.Bounds().Dx())
	assert.InDelta(t, wantScale, sess.Scale(), 1e-9)
	assert.Equal(t, int(math.Round(wantScale*100)), sess.ZoomPercent())

	events := drainEvents(sess)
	require.NotEmpty(t, events)
	assert.Equal(t, viewer.EventSessionReady, events[0].Type)
}

func TestOpen_EngineUnavailable(t *testing.T) {
	engine := &fakeEngine{doc: newFakeDoc(1, 612, 792), readyErr: errors.New("not loaded")}
	svc := viewer.NewService(engine, testViewerConfig(), testutil.NewTestLogger())

	sess, err := svc.Open(context.Background(), []byte("%PDF-stub"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEngineUnavailable)

	require.NotNil(t, sess)
	assert.Equal(t, viewer.StateFailed, sess.State())
	assert.ErrorIs(t, sess.Err(), models.ErrEngineUnavailable)

	// A failed session ignores operations.
	assert.Equal(t, 1, sess.GoTo(5))
	assert.Equal(t, 0, sess.PageCount())
	require.NoError(t, sess.Close())
}

func TestOpen_ParseFailure(t *testing.T) {
	engine := &fakeEngine{parseErr: errors.New("not a document")}
	svc := viewer.NewService(engine, testViewerConfig(), testutil.NewTestLogger())

	sess, err := svc.Open(context.Background(), []byte("garbage"))
	require.Error(t, err)
	assert.Equal(t, viewer.StateFailed, sess.State())

	events := drainEvents(sess)
	require.NotEmpty(t, events)
	assert.Equal(t, viewer.EventSessionFailed, events[0].Type)
	require.NoError(t, sess.Close())
}

func TestGoTo_Clamps(t *testing.T) {
	doc := newFakeDoc(10, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	assert.Equal(t, 10, sess.GoTo(25))
	assert.Equal(t, 10, sess.CurrentPage())

	assert.Equal(t, 1, sess.GoTo(0))
	assert.Equal(t, 1, sess.CurrentPage())

	assert.Equal(t, 1, sess.GoTo(-3))
	assert.Equal(t, 7, sess.GoTo(7))
	assert.Equal(t, 7, sess.CurrentPage())
}

func TestCommitPageInput(t *testing.T) {
	doc := newFakeDoc(10, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	sess.GoTo(3)

	assert.Equal(t, 7, sess.CommitPageInput("7"))
	assert.Equal(t, 7, sess.CurrentPage())

	// Invalid input reverts the display and leaves state untouched.
	for _, input := range []string{"abc", "", "0", "11", "3.5", "-2"} {
		assert.Equal(t, 7, sess.CommitPageInput(input), "input %q", input)
		assert.Equal(t, 7, sess.CurrentPage(), "input %q", input)
	}

	assert.Equal(t, 5, sess.CommitPageInput(" 5 "))
	assert.Equal(t, 5, sess.CurrentPage())
}

func TestZoom_StepAndClamp(t *testing.T) {
	doc := newFakeDoc(2, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	// Pin the fit scale to 1.0 so the steps are easy to follow.
	sess.SetContainerSize(612, 800)
	waitApplied(t, sess, 1, 1.0)
	require.True(t, sess.FitMode())

	assert.InDelta(t, 1.25, sess.ZoomIn(), 1e-9)
	assert.False(t, sess.FitMode(), "zoom must disable fit")
	assert.InDelta(t, 1.0, sess.ZoomOut(), 1e-9, "in then out returns to the start")

	// Clamped at both ends.
	for i := 0; i < 20; i++ {
		sess.ZoomOut()
	}
	assert.InDelta(t, 0.25, sess.Scale(), 1e-9)

	for i := 0; i < 40; i++ {
		sess.ZoomIn()
	}
	assert.InDelta(t, 4.0, sess.Scale(), 1e-9)
}

func TestResize_FitInteraction(t *testing.T) {
	doc := newFakeDoc(1, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	sess.SetContainerSize(612, 800)
	waitApplied(t, sess, 1, 1.0)

	// Resize while fit is on recomputes the scale.
	sess.SetContainerSize(1224, 800)
	waitApplied(t, sess, 1, 2.0)
	assert.Equal(t, 200, sess.ZoomPercent())

	// Manual zoom pins the scale; resizing must not move it.
	sess.ZoomIn()
	waitApplied(t, sess, 1, 2.25)
	time.Sleep(20 * time.Millisecond) // let superseded renders drain
	rendersBefore := doc.startedCount()

	sess.SetContainerSize(612, 800)
	time.Sleep(20 * time.Millisecond)
	assert.InDelta(t, 2.25, sess.Scale(), 1e-9)
	assert.Equal(t, rendersBefore, doc.startedCount(), "resize without fit must not render")

	// Re-enabling fit recomputes from the current container.
	sess.FitToContainer()
	waitApplied(t, sess, 1, 1.0)
	assert.True(t, sess.FitMode())
}

func TestRenderSlot_SupersededNeverApplies(t *testing.T) {
	doc := newFakeDoc(1, 612, 792)
	gate := make(chan struct{})
	doc.gate = gate

	sess := openSession(t, doc)
	defer sess.Close()

	// The mount render for page 1 is stuck at the gate. Zooming
	// reissues the slot, cancelling it.
	sess.ZoomIn() // neutral 1.0 + step, fit never applied
	close(gate)

	waitApplied(t, sess, 1, 1.25)
	surface, ok := sess.Surface(1)
	require.True(t, ok)
	assert.InDelta(t, 1.25, surface.Scale, 1e-9, "only the latest request may draw")
	assert.Equal(t, 125, sess.ZoomPercent())

	for _, ev := range drainEvents(sess) {
		assert.NotEqual(t, viewer.EventRenderFailed, ev.Type,
			"a cancelled render must never surface as a failure")
	}
}

func TestScrollSync_NearestCenter(t *testing.T) {
	doc := newFakeDoc(3, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	// Scale 1: page extents along the vertical axis are
	// [0,792], [808,1600], [1616,2408] with the 16 gap.
	sess.SetContainerSize(612, 800)
	sess.SetMode(viewer.ModeContinuous)
	for page := 1; page <= 3; page++ {
		waitApplied(t, sess, page, 1.0)
	}
	time.Sleep(20 * time.Millisecond) // let superseded renders drain
	renders := doc.startedCount()

	// Page 2's center (1204) nearest the viewport center.
	assert.Equal(t, 2, sess.Scroll(804))
	assert.Equal(t, 2, sess.CurrentPage())

	assert.Equal(t, 3, sess.Scroll(1700))
	assert.Equal(t, 1, sess.Scroll(0))

	// Equidistant between pages 1 and 2: the tie breaks low.
	assert.Equal(t, 1, sess.Scroll(400))

	assert.Equal(t, renders, doc.startedCount(), "scroll sync must never render")
}

func TestGoTo_ContinuousCenters(t *testing.T) {
	doc := newFakeDoc(3, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	sess.SetContainerSize(612, 800)
	sess.SetMode(viewer.ModeContinuous)

	// Page 3 center 2012, viewport half 400, content max offset 1608.
	assert.Equal(t, 3, sess.GoTo(3))
	assert.InDelta(t, 1608.0, sess.ScrollOffset(), 1e-9)

	assert.Equal(t, 1, sess.GoTo(1))
	assert.InDelta(t, 0.0, sess.ScrollOffset(), 1e-9)
}

func TestSetAxis_ReenablesFit(t *testing.T) {
	doc := newFakeDoc(2, 612, 792)
	sess := openSession(t, doc)
	defer sess.Close()

	sess.SetContainerSize(612, 792)
	sess.SetMode(viewer.ModeContinuous)
	waitApplied(t, sess, 1, 1.0)

	sess.ZoomIn()
	require.False(t, sess.FitMode())

	// Same axis is a no-op.
	sess.SetAxis(viewer.AxisVertical)
	assert.False(t, sess.FitMode())

	// Switching axes re-enables fit; horizontal fits to height.
	sess.SetAxis(viewer.AxisHorizontal)
	assert.True(t, sess.FitMode())
	assert.Equal(t, viewer.AxisHorizontal, sess.Axis())
	waitApplied(t, sess, 1, 1.0) // 792 / 792
}

func TestRenderFailure_Isolated(t *testing.T) {
	doc := newFakeDoc(3, 612, 792)
	doc.failPages[2] = errors.New("damaged page stream")

	sess := openSession(t, doc)
	defer sess.Close()

	sess.SetContainerSize(612, 800)
	sess.SetMode(viewer.ModeContinuous)

	waitApplied(t, sess, 1, 1.0)
	waitApplied(t, sess, 3, 1.0)

	testutil.WaitForCondition(t, func() bool {
		for _, ev := range drainEvents(sess) {
			if ev.Type == viewer.EventRenderFailed && ev.Page == 2 {
				return true
			}
		}
		return false
	}, 5*time.Second, "render failure reported")

	_, ok := sess.Surface(2)
	assert.False(t, ok, "failed page keeps no surface")
	assert.Equal(t, viewer.StateReady, sess.State(), "a page failure never ends the session")
	assert.Equal(t, 3, sess.GoTo(3), "session stays navigable")
}

func TestClose_CancelsInFlight(t *testing.T) {
	doc := newFakeDoc(1, 612, 792)
	gate := make(chan struct{})
	doc.gate = gate

	sess := openSession(t, doc)

	require.NoError(t, sess.Close())
	assert.True(t, doc.isClosed())
	close(gate)

	// The released render must not apply to a closed session.
	time.Sleep(50 * time.Millisecond)
	_, ok := sess.Surface(1)
	assert.False(t, ok)

	require.NoError(t, sess.Close(), "close is idempotent")
	assert.Equal(t, 1, sess.GoTo(5), "operations after close are inert")
}

func TestPageSize(t *testing.T) {
	doc := newFakeDoc(2, 595, 842)
	sess := openSession(t, doc)
	defer sess.Close()

	size, err := sess.PageSize(1)
	require.NoError(t, err)
	assert.Equal(t, raster.Size{W: 595, H: 842}, size)

	_, err = sess.PageSize(0)
	assert.ErrorIs(t, err, models.ErrPageOutOfRange)
	_, err = sess.PageSize(3)
	assert.ErrorIs(t, err, models.ErrPageOutOfRange)
}
