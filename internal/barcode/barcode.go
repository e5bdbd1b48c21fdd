// Package barcode cleans receipt barcode text and renders its bar pattern.
package barcode

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	bc "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
)

// Symbology is the barcode encoding convention
type Symbology string

const (
	// Code128Numeric encodes digits only with Code 128
	Code128Numeric Symbology = "code128"
	// Code39 encodes the Code 39 alphabet; '*' is its start/stop character
	Code39 Symbology = "code39"
)

const code39Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-. $/+%"

// QuietZone is the number of blank modules drawn either side of the bars
const QuietZone = 10

// ParseSymbology accepts "code128" or "code39"
func ParseSymbology(s string) (Symbology, error) {
	switch sym := Symbology(strings.ToLower(strings.TrimSpace(s))); sym {
	case Code128Numeric, Code39:
		return sym, nil
	}
	return "", fmt.Errorf("unknown symbology %q (want %q or %q)", s, Code128Numeric, Code39)
}

// Clean drops every character the symbology cannot encode. It is idempotent.
func Clean(raw string, sym Symbology) string {
	var b strings.Builder
	switch sym {
	case Code39:
		for _, r := range strings.ToUpper(raw) {
			if strings.ContainsRune(code39Alphabet, r) {
				b.WriteRune(r)
			}
		}
	default:
		for _, r := range raw {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Pattern is the module sequence of a rendered barcode; true is a bar
type Pattern []bool

// String renders bars as '1' and spaces as '0'
func (p Pattern) String() string {
	var b strings.Builder
	b.Grow(len(p))
	for _, bar := range p {
		if bar {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Image draws the pattern with a quiet zone on both sides.
// An empty pattern yields a blank image of just the quiet zones.
func (p Pattern) Image(moduleWidth, height int) image.Image {
	if moduleWidth < 1 {
		moduleWidth = 1
	}
	if height < 1 {
		height = 1
	}
	width := (len(p) + 2*QuietZone) * moduleWidth
	img := image.NewGray(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		shade := color.Gray{Y: 0xff}
		module := x/moduleWidth - QuietZone
		if module >= 0 && module < len(p) && p[module] {
			shade = color.Gray{Y: 0}
		}
		for y := 0; y < height; y++ {
			img.SetGray(x, y, shade)
		}
	}
	return img
}

// Code is a cleaned payload with its bar pattern
type Code struct {
	Symbology Symbology `json:"symbology"`
	Payload   string    `json:"payload"`
	Pattern   Pattern   `json:"-"`
}

// Empty reports whether nothing survived cleaning
func (c Code) Empty() bool {
	return c.Payload == ""
}

// Encode cleans raw and renders it. Input with no encodable characters
// yields an empty Code and no error.
func Encode(raw string, sym Symbology) (Code, error) {
	payload := Clean(raw, sym)
	code := Code{Symbology: sym, Payload: payload}
	if payload == "" {
		return code, nil
	}

	var (
		encoded bc.BarcodeIntCS
		err     error
	)
	switch sym {
	case Code39:
		encoded, err = code39.Encode(payload, false, false)
	default:
		encoded, err = code128.Encode(payload)
	}
	if err != nil {
		return Code{Symbology: sym}, fmt.Errorf("encoding %s barcode: %w", sym, err)
	}

	code.Pattern = patternOf(encoded)
	return code, nil
}

// patternOf reads the unscaled 1D barcode image one module per pixel
func patternOf(img image.Image) Pattern {
	bounds := img.Bounds()
	p := make(Pattern, 0, bounds.Dx())
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		gray := color.GrayModel.Convert(img.At(x, bounds.Min.Y)).(color.Gray)
		p = append(p, gray.Y < 0x80)
	}
	return p
}
