package export

import (
	"math"
	"sync"

	"github.com/zombor/receipt-studio/internal/layout"
)

// Zoom bounds for the preview
const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

// Surface is the mounted preview an export captures from
type Surface interface {
	// Document returns the currently painted document, false when nothing is mounted
	Document() (layout.Document, bool)
	Zoom() float64
	SetZoom(zoom float64)
}

// PreviewSurface is an in-process preview: the last rendered document plus
// the zoom the user is viewing it at.
type PreviewSurface struct {
	mu      sync.RWMutex
	doc     layout.Document
	mounted bool
	zoom    float64
}

// NewPreviewSurface creates an unmounted surface at zoom 1
func NewPreviewSurface() *PreviewSurface {
	return &PreviewSurface{zoom: 1}
}

// Mount paints doc on the surface
func (s *PreviewSurface) Mount(doc layout.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.mounted = true
}

// Unmount removes the painted document
func (s *PreviewSurface) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = layout.Document{}
	s.mounted = false
}

// Document returns the painted document
func (s *PreviewSurface) Document() (layout.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.mounted
}

// Zoom returns the current scale
func (s *PreviewSurface) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// SetZoom sets the scale, clamped to [MinZoom, MaxZoom]
func (s *PreviewSurface) SetZoom(zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = ClampZoom(zoom)
}

// ClampZoom bounds zoom to [MinZoom, MaxZoom]; non-positive values reset to 1
func ClampZoom(zoom float64) float64 {
	switch {
	case zoom <= 0 || math.IsNaN(zoom):
		return 1
	case zoom < MinZoom:
		return MinZoom
	case zoom > MaxZoom:
		return MaxZoom
	}
	return zoom
}
