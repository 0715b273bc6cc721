package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrEntryNotFound     = errors.New("entry not found")
	ErrEntryNotOpenable  = errors.New("entry has no content to open")
	ErrEngineUnavailable = errors.New("raster engine unavailable")
	ErrNoDocument        = errors.New("no document loaded")
	ErrViewerClosed      = errors.New("viewer session closed")
	ErrSessionFailed     = errors.New("document failed to load")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrPageOutOfRange    = errors.New("page out of range")
	ErrDocumentClosed    = errors.New("document closed")
)

// StoreError wraps a remote library store failure with the operation
// and the blob locator involved.
type StoreError struct {
	Op      string
	Locator string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Locator, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ParseError represents a document that the raster engine rejected.
// Terminal for the viewer session that attempted the load.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("parse %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("parse document: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RenderError represents a per-page rasterization failure. Isolated to
// the page; never fatal for the session.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
