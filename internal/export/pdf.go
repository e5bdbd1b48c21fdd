package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/johnfercher/maroto/v2"
	mimage "github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Encoder wraps a captured bitmap into the downloadable container
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// A4 portrait geometry in millimetres
const (
	a4WidthMM  = 210.0
	a4MarginMM = 10.0
	// leaves room for maroto's bottom margin so the image never spills onto page 2
	a4MaxImageHeightMM = 255.0
)

// PDFEncoder places the bitmap on a single A4 portrait page at full
// printable width, keeping the bitmap's aspect ratio.
type PDFEncoder struct{}

// NewPDFEncoder creates a PDFEncoder
func NewPDFEncoder() *PDFEncoder {
	return &PDFEncoder{}
}

// ImageHeight returns the placed height for a bitmap of the given pixel size
func ImageHeight(pixelWidth, pixelHeight int) float64 {
	width := a4WidthMM - 2*a4MarginMM
	return math.Min(width*float64(pixelHeight)/float64(pixelWidth), a4MaxImageHeightMM)
}

// Encode embeds img as PNG in a one-page PDF
func (e *PDFEncoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("no image to encode")
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("cannot encode empty %dx%d image", bounds.Dx(), bounds.Dy())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithOrientation(orientation.Vertical).
		WithLeftMargin(a4MarginMM).
		WithTopMargin(a4MarginMM).
		WithRightMargin(a4MarginMM).
		Build()

	m := maroto.New(cfg)
	m.AddRows(row.New(ImageHeight(bounds.Dx(), bounds.Dy())).Add(
		mimage.NewFromBytesCol(12, buf.Bytes(), extension.Png, props.Rect{Percent: 100, Center: true}),
	))

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating PDF: %w", err)
	}
	return out.GetBytes(), nil
}
