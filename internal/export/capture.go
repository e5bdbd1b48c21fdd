package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	mimage "github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/zombor/receipt-studio/internal/layout"
)

// Capturer rasterizes what a surface currently shows
type Capturer interface {
	Capture(ctx context.Context, s Surface) (image.Image, error)
}

// Receipt page geometry in millimetres at zoom 1
const (
	ReceiptWidthMM  = 80.0
	ReceiptMarginMM = 4.0
	LineHeightMM    = 4.5
	LogoHeightMM    = 18.0
	BarcodeHeightMM = 16.0
	FontSizePt      = 8.0
	// maroto reserves a bottom margin that does not scale with zoom
	pageSlackMM = 25.0
)

// DefaultDPI is the capture resolution
const DefaultDPI = 150.0

// FitzCapturer paints the surface document onto a receipt-width page and
// rasterizes page 0 with MuPDF.
type FitzCapturer struct {
	dpi float64
}

// NewFitzCapturer creates a capturer rendering at dpi (DefaultDPI if <= 0)
func NewFitzCapturer(dpi float64) *FitzCapturer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzCapturer{dpi: dpi}
}

// Capture renders the mounted document at the surface's current zoom
func (c *FitzCapturer) Capture(ctx context.Context, s Surface) (image.Image, error) {
	doc, ok := s.Document()
	if !ok {
		return nil, ErrRenderTargetUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfData, err := LayoutPDF(doc, s.Zoom())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rendered, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening layout PDF: %w", err)
	}
	defer rendered.Close()

	img, err := rendered.ImageDPI(0, c.dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering layout page: %w", err)
	}
	return img, nil
}

// LayoutPDF lays the document out on a single receipt-width page scaled by zoom
func LayoutPDF(doc layout.Document, zoom float64) ([]byte, error) {
	zoom = ClampZoom(zoom)

	rows := make([]core.Row, 0, len(doc.Lines))
	height := 2*ReceiptMarginMM*zoom + pageSlackMM
	for _, l := range doc.Lines {
		r, h, err := layoutRow(doc, l, zoom)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
		height += h
	}

	margin := ReceiptMarginMM * zoom
	cfg := config.NewBuilder().
		WithDimensions(ReceiptWidthMM*zoom, height).
		WithLeftMargin(margin).
		WithTopMargin(margin).
		WithRightMargin(margin).
		WithDefaultFont(&props.Font{Family: fontfamily.Courier, Size: FontSizePt * zoom}).
		Build()

	m := maroto.New(cfg)
	m.AddRows(rows...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating layout PDF: %w", err)
	}
	return out.GetBytes(), nil
}

// layoutRow returns the row for one line and its height
func layoutRow(doc layout.Document, l layout.Line, zoom float64) (core.Row, float64, error) {
	lineHeight := LineHeightMM * zoom
	style := fontstyle.Normal
	if l.Emphasis {
		style = fontstyle.Bold
	}

	switch l.Kind {
	case layout.KindBlank:
		return row.New(lineHeight).Add(col.New(12)), lineHeight, nil
	case layout.KindLogo:
		if doc.Logo == nil {
			return row.New(lineHeight).Add(col.New(12)), lineHeight, nil
		}
		h := LogoHeightMM * zoom
		return row.New(h).Add(
			mimage.NewFromBytesCol(12, doc.Logo.Data, extension.Png, props.Rect{Center: true, Percent: 100}),
		), h, nil
	case layout.KindBarcode:
		var buf bytes.Buffer
		if err := png.Encode(&buf, doc.Barcode.Pattern.Image(layout.BarcodeModuleWidth, layout.BarcodeHeight)); err != nil {
			return nil, 0, fmt.Errorf("encoding barcode image: %w", err)
		}
		h := BarcodeHeightMM * zoom
		return row.New(h).Add(
			mimage.NewFromBytesCol(12, buf.Bytes(), extension.Png, props.Rect{Center: true, Percent: 100}),
		), h, nil
	case layout.KindItem, layout.KindTotal:
		return row.New(lineHeight).Add(
			text.NewCol(8, l.Left, props.Text{Align: align.Left, Style: style}),
			text.NewCol(4, l.Right, props.Text{Align: align.Right, Style: style}),
		), lineHeight, nil
	case layout.KindComment, layout.KindDetail:
		return row.New(lineHeight).Add(
			text.NewCol(12, l.Left, props.Text{Align: align.Left, Style: style}),
		), lineHeight, nil
	default:
		return row.New(lineHeight).Add(
			text.NewCol(12, l.Left, props.Text{Align: align.Center, Style: style}),
		), lineHeight, nil
	}
}
