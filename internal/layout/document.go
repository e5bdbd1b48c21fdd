package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/zombor/receipt-studio/internal/barcode"
	"github.com/zombor/receipt-studio/internal/receipt"
	"github.com/zombor/receipt-studio/internal/totals"
)

// DefaultWidth is the column count of the canonical text serialization
const DefaultWidth = 40

// Document is the canonical rendered receipt. Preview, print and raster
// output are all painted from a Document and never from the model directly.
type Document struct {
	Title   string        `json:"title"`
	Lines   []Line        `json:"lines"`
	Logo    *receipt.Logo `json:"-"`
	Barcode barcode.Code  `json:"barcode"`
}

// Build renders a snapshot into a Document
func Build(r receipt.Receipt, t totals.Totals, opts Options) Document {
	code := encodeBarcode(r, opts)
	return Document{
		Title: r.Store.Name,
		Lines: slices.Collect(iter.Seq[Line](func(yield func(Line) bool) {
			emitLines(r, t, code, yield)
		})),
		Logo:    r.Store.Logo,
		Barcode: code,
	}
}

// Text serializes the document to fixed-width plain text. Header and footer
// text is centered; amounts are right-aligned. Lines wider than width are
// kept whole rather than wrapped.
func (d Document) Text(width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	var b strings.Builder
	for _, l := range d.Lines {
		b.WriteString(textLine(l, width))
		b.WriteByte('\n')
	}
	return b.String()
}

func textLine(l Line, width int) string {
	switch l.Kind {
	case KindBlank:
		return ""
	case KindLogo:
		return center("[LOGO]", width)
	case KindBarcode:
		return center("[BARCODE "+l.Left+"]", width)
	case KindItem, KindTotal:
		gap := width - utf8.RuneCountInString(l.Left) - utf8.RuneCountInString(l.Right)
		if gap < 1 {
			return l.Left + "\n" + strings.Repeat(" ", max(0, width-utf8.RuneCountInString(l.Right))) + l.Right
		}
		return l.Left + strings.Repeat(" ", gap) + l.Right
	case KindComment, KindDetail:
		return l.Left
	default:
		return center(l.Left, width)
	}
}

func center(s string, width int) string {
	pad := (width - utf8.RuneCountInString(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

// Digest fingerprints the document content. Two adapters painting documents
// with equal digests show the same receipt.
func (d Document) Digest() string {
	h := sha256.New()
	h.Write([]byte(d.Text(DefaultWidth)))
	h.Write([]byte(d.Barcode.Pattern.String()))
	if d.Logo != nil {
		h.Write(d.Logo.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
