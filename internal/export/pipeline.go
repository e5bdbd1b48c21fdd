// Package export produces print jobs and PDF downloads from the mounted
// receipt preview.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-studio/internal/imaging"
	"github.com/zombor/receipt-studio/internal/layout"
	"github.com/zombor/receipt-studio/internal/receipt"
)

// IDGenerator generates export job IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Artifact is a finished PDF download
type Artifact struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	Digest      string    `json:"digest"`
	CreatedAt   time.Time `json:"created_at"`
}

// Pipeline runs print and PDF exports. One export runs at a time; a request
// made while another is in flight is refused with ErrExportInProgress.
type Pipeline struct {
	capturer    Capturer
	encoder     Encoder
	printer     Printer
	downloads   Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	// OnTransition, when set, observes every state change
	OnTransition func(jobID string, from, to State)

	busy    sync.Mutex
	stateMu sync.RWMutex
	state   State
}

// NewPipeline creates a Pipeline with uuid job IDs and the wall clock
func NewPipeline(capturer Capturer, encoder Encoder, printer Printer, downloads Storage) *Pipeline {
	return NewPipelineWithDeps(capturer, encoder, printer, downloads, &uuidGenerator{}, &defaultTimeSource{})
}

// NewPipelineWithDeps creates a Pipeline with custom dependencies for testing
func NewPipelineWithDeps(capturer Capturer, encoder Encoder, printer Printer, downloads Storage, idGen IDGenerator, timeSrc TimeSource) *Pipeline {
	return &Pipeline{
		capturer:    capturer,
		encoder:     encoder,
		printer:     printer,
		downloads:   downloads,
		idGenerator: idGen,
		timeSource:  timeSrc,
		state:       Idle,
	}
}

// State returns the step the running export is in, Idle when none is
func (p *Pipeline) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

func (p *Pipeline) transition(jobID string, to State) {
	p.stateMu.Lock()
	from := p.state
	p.state = to
	p.stateMu.Unlock()

	slog.Debug("Export state changed", "job_id", jobID, "from", from, "to", to)
	if p.OnTransition != nil {
		p.OnTransition(jobID, from, to)
	}
}

// checkPreconditions gates every export on the snapshot alone
func checkPreconditions(r receipt.Receipt) error {
	if !r.AcceptedTerms {
		return ErrTermsNotAccepted
	}
	if !imaging.ValidLogo(r.Store.Logo) {
		return ErrInvalidLogo
	}
	return nil
}

// fail logs err, returns the pipeline to Idle and hands err back
func (p *Pipeline) fail(jobID string, op string, err error) error {
	slog.Error("Export failed", "job_id", jobID, "op", op, "state", p.State(), "error", err)
	p.transition(jobID, Idle)
	return err
}

// Print renders the mounted document as a standalone print page and
// dispatches it to the printer.
func (p *Pipeline) Print(ctx context.Context, r receipt.Receipt, s Surface) (*Job, error) {
	if !p.busy.TryLock() {
		return nil, ErrExportInProgress
	}
	defer p.busy.Unlock()

	id := p.idGenerator.Generate()
	if err := checkPreconditions(r); err != nil {
		return nil, p.fail(id, "print", err)
	}

	p.transition(id, Rendering)
	doc, ok := s.Document()
	if !ok {
		return nil, p.fail(id, "print", ErrRenderTargetUnavailable)
	}
	page, err := layout.PrintHTML(doc)
	if err != nil {
		return nil, p.fail(id, "print", fmt.Errorf("%w: %v", ErrPrintFailed, err))
	}

	job := &Job{
		ID:          id,
		Title:       doc.Title,
		ContentType: "text/html; charset=utf-8",
		Document:    []byte(page),
		Digest:      doc.Digest(),
		CreatedAt:   p.timeSource.Now(),
	}
	if _, err := guarded("printer", func() (struct{}, error) {
		return struct{}{}, p.printer.Print(ctx, *job)
	}); err != nil {
		return nil, p.fail(id, "print", fmt.Errorf("%w: %v", ErrPrintFailed, err))
	}

	p.transition(id, Dispatched)
	slog.Info("Receipt dispatched to printer", "job_id", id, "digest", job.Digest)
	p.transition(id, Idle)
	return job, nil
}

// ExportPDF captures the mounted preview at zoom 1, embeds the bitmap in a
// one-page PDF and saves it to downloads. The surface zoom is restored on
// every exit path.
func (p *Pipeline) ExportPDF(ctx context.Context, r receipt.Receipt, s Surface) (*Artifact, error) {
	if !p.busy.TryLock() {
		return nil, ErrExportInProgress
	}
	defer p.busy.Unlock()

	id := p.idGenerator.Generate()
	if err := checkPreconditions(r); err != nil {
		return nil, p.fail(id, "pdf", err)
	}

	p.transition(id, CapturePending)
	doc, ok := s.Document()
	if !ok {
		return nil, p.fail(id, "pdf", ErrRenderTargetUnavailable)
	}

	prevZoom := s.Zoom()
	s.SetZoom(1)
	defer s.SetZoom(prevZoom)

	img, err := p.capture(ctx, s)
	if err != nil {
		return nil, p.fail(id, "pdf", fmt.Errorf("%w: %v", ErrCaptureFailed, err))
	}
	p.transition(id, Captured)

	data, err := guarded("encoder", func() ([]byte, error) {
		return p.encoder.Encode(img)
	})
	if err != nil {
		return nil, p.fail(id, "pdf", fmt.Errorf("%w: %v", ErrEncodeFailed, err))
	}
	p.transition(id, Encoded)

	now := p.timeSource.Now()
	name, err := guarded("downloads", func() (string, error) {
		return p.downloads.Save(ArtifactName(now), data)
	})
	if err != nil {
		return nil, p.fail(id, "pdf", fmt.Errorf("%w: %v", ErrDownloadFailed, err))
	}
	p.transition(id, Downloaded)

	artifact := &Artifact{
		ID:          id,
		Filename:    name,
		ContentType: "application/pdf",
		Data:        data,
		Digest:      doc.Digest(),
		CreatedAt:   now,
	}
	slog.Info("Receipt PDF exported", "job_id", id, "filename", name, "bytes", len(data))
	p.transition(id, Idle)
	return artifact, nil
}

// guarded runs one export step, turning a panic into an error so the export
// still unwinds to Idle
func guarded[T any](step string, fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v, err = zero, fmt.Errorf("%s panicked: %v", step, rec)
		}
	}()
	return fn()
}

func (p *Pipeline) capture(ctx context.Context, s Surface) (image.Image, error) {
	img, err := guarded("capturer", func() (image.Image, error) {
		return p.capturer.Capture(ctx, s)
	})
	if err == nil && img == nil {
		err = fmt.Errorf("capturer returned no image")
	}
	return img, err
}

// Download returns a previously exported PDF by file name
func (p *Pipeline) Download(name string) ([]byte, error) {
	data, err := p.downloads.Get(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return data, nil
}

// DiscardDownload removes an exported PDF once the user has it
func (p *Pipeline) DiscardDownload(name string) error {
	if err := p.downloads.Delete(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return fmt.Errorf("discarding %s: %w", name, err)
	}
	slog.Debug("Discarded download", "filename", name)
	return nil
}

// ArtifactName is the download file name for an export made at t
func ArtifactName(t time.Time) string {
	return "receipt-" + t.Format("20060102-150405") + ".pdf"
}
