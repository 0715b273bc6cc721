package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/avoswald/folio/internal/raster"
	"github.com/avoswald/folio/internal/store"
)

// MockStore mocks the remote library store.
type MockStore struct {
	mock.Mock
	mu      sync.Mutex
	uploads []string
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Upload(ctx context.Context, id, filename string, data []byte, meta store.Metadata) (*store.Record, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, id)
	m.mu.Unlock()

	args := m.Called(ctx, id, filename, data, meta)
	if rec := args.Get(0); rec != nil {
		return rec.(*store.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]*store.Record, error) {
	args := m.Called(ctx)
	if rows := args.Get(0); rows != nil {
		return rows.([]*store.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Download(ctx context.Context, locator string) ([]byte, error) {
	args := m.Called(ctx, locator)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) PublicURL(locator string) string {
	args := m.Called(locator)
	return args.String(0)
}

func (m *MockStore) PresignGet(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// UploadedIDs returns the ids passed to Upload, in call order.
func (m *MockStore) UploadedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.uploads))
	copy(ids, m.uploads)
	return ids
}

// MockEngine mocks the rasterization engine.
type MockEngine struct {
	mock.Mock
}

func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEngine) Parse(ctx context.Context, data []byte) (raster.Document, error) {
	args := m.Called(ctx, data)
	if doc := args.Get(0); doc != nil {
		return doc.(raster.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDocument mocks a parsed document.
type MockDocument struct {
	mock.Mock
}

func NewMockDocument() *MockDocument {
	return &MockDocument{}
}

func (m *MockDocument) PageCount() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDocument) PageSize(page int) (raster.Size, error) {
	args := m.Called(page)
	return args.Get(0).(raster.Size), args.Error(1)
}

func (m *MockDocument) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	args := m.Called(ctx, page, scale)
	if img := args.Get(0); img != nil {
		return img.(*image.RGBA), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDocument) Close() error {
	args := m.Called()
	return args.Error(0)
}

// AssertMockExpectations verifies all mock expectations.
func AssertMockExpectations(t TestingT, mocks ...interface{}) {
	for _, m := range mocks {
		if mockObj, ok := m.(interface{ AssertExpectations(TestingT) bool }); ok {
			mockObj.AssertExpectations(t)
		}
	}
}

// TestingT is a minimal interface for testing.T compatibility.
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}
