// Package studio hosts the receipt editor: one in-memory session edited over
// HTTP, previewed as HTML and exported through the export pipeline.
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/receipt-studio/internal/export"
	"github.com/zombor/receipt-studio/internal/imaging"
	"github.com/zombor/receipt-studio/internal/layout"
	"github.com/zombor/receipt-studio/internal/receipt"
	"github.com/zombor/receipt-studio/internal/totals"
)

// Exporter runs print and PDF exports and hands back finished downloads
type Exporter interface {
	Print(ctx context.Context, r receipt.Receipt, s export.Surface) (*export.Job, error)
	ExportPDF(ctx context.Context, r receipt.Receipt, s export.Surface) (*export.Artifact, error)
	Download(name string) ([]byte, error)
	DiscardDownload(name string) error
}

// Session holds the receipt being edited. Every edit swaps in a new snapshot
// and repaints the preview surface.
type Session struct {
	mu       sync.RWMutex
	current  receipt.Receipt
	policy   totals.Policy
	options  layout.Options
	surface  *export.PreviewSurface
	exporter Exporter
}

// NewSession creates a session starting from initial
func NewSession(initial receipt.Receipt, policy totals.Policy, options layout.Options, exporter Exporter) *Session {
	s := &Session{
		current:  initial,
		policy:   policy,
		options:  options,
		surface:  export.NewPreviewSurface(),
		exporter: exporter,
	}
	s.surface.Mount(s.build(initial))
	return s
}

func (s *Session) build(r receipt.Receipt) layout.Document {
	return layout.Build(r, totals.Compute(r, s.policy), s.options)
}

// Snapshot returns the current receipt and its totals
func (s *Session) Snapshot() (receipt.Receipt, totals.Totals) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, totals.Compute(s.current, s.policy)
}

// Document returns the document painted on the preview
func (s *Session) Document() layout.Document {
	doc, _ := s.surface.Document()
	return doc
}

// Zoom returns the preview zoom
func (s *Session) Zoom() float64 {
	return s.surface.Zoom()
}

// SetZoom sets the preview zoom and returns the clamped value
func (s *Session) SetZoom(zoom float64) float64 {
	s.surface.SetZoom(zoom)
	return s.surface.Zoom()
}

// apply swaps in the snapshot returned by edit. A failed edit keeps the
// current snapshot.
func (s *Session) apply(op string, edit func(receipt.Receipt) (receipt.Receipt, error)) (receipt.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := edit(s.current)
	if err != nil {
		return s.current, fmt.Errorf("%s: %w", op, err)
	}
	s.current = next
	s.surface.Mount(s.build(next))
	slog.Debug("Receipt edited", "op", op, "items", len(next.Items))
	return next, nil
}

func infallible(edit func(receipt.Receipt) receipt.Receipt) func(receipt.Receipt) (receipt.Receipt, error) {
	return func(r receipt.Receipt) (receipt.Receipt, error) {
		return edit(r), nil
	}
}

// SetField sets a receipt field from user text
func (s *Session) SetField(field, value string) (receipt.Receipt, error) {
	return s.apply("set field", func(r receipt.Receipt) (receipt.Receipt, error) {
		return r.SetField(field, value)
	})
}

// AddItem appends a blank line item
func (s *Session) AddItem() receipt.Receipt {
	r, _ := s.apply("add item", infallible(receipt.Receipt.AddItem))
	return r
}

// UpdateItem sets a field of the item at index
func (s *Session) UpdateItem(index int, field, value string) (receipt.Receipt, error) {
	return s.apply("update item", func(r receipt.Receipt) (receipt.Receipt, error) {
		return r.UpdateItem(index, field, value)
	})
}

// RemoveItem removes the item at index
func (s *Session) RemoveItem(index int) receipt.Receipt {
	r, _ := s.apply("remove item", infallible(func(r receipt.Receipt) receipt.Receipt {
		return r.RemoveItem(index)
	}))
	return r
}

// Clear empties the items and cash
func (s *Session) Clear() receipt.Receipt {
	r, _ := s.apply("clear", infallible(receipt.Receipt.Clear))
	return r
}

// Reset replaces the receipt with the sample
func (s *Session) Reset() receipt.Receipt {
	r, _ := s.apply("reset", infallible(func(receipt.Receipt) receipt.Receipt {
		return receipt.Default()
	}))
	return r
}

// SetLogo normalizes an uploaded image and places it on the receipt
func (s *Session) SetLogo(data []byte, contentType string) (receipt.Receipt, error) {
	logo, err := imaging.NormalizeLogo(data, contentType)
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.current, fmt.Errorf("set logo: %w", err)
	}
	r, _ := s.apply("set logo", infallible(func(r receipt.Receipt) receipt.Receipt {
		return r.WithLogo(logo)
	}))
	return r, nil
}

// RemoveLogo takes the logo off the receipt
func (s *Session) RemoveLogo() receipt.Receipt {
	r, _ := s.apply("remove logo", infallible(receipt.Receipt.WithoutLogo))
	return r
}

// pinnedSurface exports the document painted when the export was requested
// while zoom changes still reach the live preview.
type pinnedSurface struct {
	*export.PreviewSurface
	doc layout.Document
	ok  bool
}

func (p pinnedSurface) Document() (layout.Document, bool) {
	return p.doc, p.ok
}

// request captures the snapshot and painted document an export works from
func (s *Session) request() (receipt.Receipt, export.Surface) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.surface.Document()
	return s.current, pinnedSurface{PreviewSurface: s.surface, doc: doc, ok: ok}
}

// Print sends the current receipt to the printer
func (s *Session) Print(ctx context.Context) (*export.Job, error) {
	r, surface := s.request()
	return s.exporter.Print(ctx, r, surface)
}

// ExportPDF renders the current receipt as a PDF download
func (s *Session) ExportPDF(ctx context.Context) (*export.Artifact, error) {
	r, surface := s.request()
	return s.exporter.ExportPDF(ctx, r, surface)
}

// Download returns an exported PDF by file name
func (s *Session) Download(name string) ([]byte, error) {
	return s.exporter.Download(name)
}

// DiscardDownload removes an exported PDF
func (s *Session) DiscardDownload(name string) error {
	return s.exporter.DiscardDownload(name)
}
