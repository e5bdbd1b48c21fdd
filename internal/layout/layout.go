// Package layout turns a receipt snapshot and its totals into the ordered
// display lines shared by the live preview and every export.
package layout

import (
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zombor/receipt-studio/internal/barcode"
	"github.com/zombor/receipt-studio/internal/receipt"
	"github.com/zombor/receipt-studio/internal/totals"
)

// Block groups lines into receipt sections
type Block string

const (
	BlockHeader Block = "header"
	BlockItems  Block = "items"
	BlockTotals Block = "totals"
	BlockFooter Block = "footer"
)

// Kind tells a presentation adapter how to paint a line
type Kind string

const (
	KindLogo    Kind = "logo"
	KindText    Kind = "text"
	KindItem    Kind = "item"
	KindComment Kind = "comment" // zero-priced item, no amount column
	KindDetail  Kind = "detail"  // second description line of an item
	KindTotal   Kind = "total"
	KindBarcode Kind = "barcode"
	KindBlank   Kind = "blank"
)

// Total labels, in print order
const (
	LabelSubtotal = "SUBTOTAL"
	LabelTax      = "TOTAL TAX"
	LabelTotal    = "TOTAL"
	LabelCash     = "CASH"
	LabelChange   = "CHANGE"
)

// Line is one display line. Left is left-aligned (or centered for header and
// footer text), Right is right-aligned.
type Line struct {
	Block    Block  `json:"block"`
	Kind     Kind   `json:"kind"`
	Left     string `json:"left,omitempty"`
	Right    string `json:"right,omitempty"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Options configures rendering choices that are not part of the receipt
type Options struct {
	Symbology barcode.Symbology
}

// Lines returns the receipt as a lazy sequence. Ranging over it again
// regenerates the same lines.
func Lines(r receipt.Receipt, t totals.Totals, opts Options) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		emitLines(r, t, encodeBarcode(r, opts), yield)
	}
}

// encodeBarcode never fails the render; an unencodable payload prints as empty
func encodeBarcode(r receipt.Receipt, opts Options) barcode.Code {
	sym := opts.Symbology
	if sym == "" {
		sym = barcode.Code128Numeric
	}
	code, err := barcode.Encode(r.Identifiers.BarcodeRaw, sym)
	if err != nil {
		slog.Warn("Failed to encode barcode", "raw", r.Identifiers.BarcodeRaw, "symbology", sym, "error", err)
		return barcode.Code{Symbology: sym}
	}
	return code
}

func emitLines(r receipt.Receipt, t totals.Totals, code barcode.Code, yield func(Line) bool) {
	blocks := []struct {
		block Block
		emit  func(func(Line) bool) bool
	}{
		{BlockHeader, func(y func(Line) bool) bool { return headerLines(r, y) }},
		{BlockItems, func(y func(Line) bool) bool { return itemLines(r, y) }},
		{BlockTotals, func(y func(Line) bool) bool { return totalLines(t, y) }},
		{BlockFooter, func(y func(Line) bool) bool { return footerLines(r, code, y) }},
	}
	for i, b := range blocks {
		// a blank line opens every block after the header
		if i > 0 && !yield(Line{Block: b.block, Kind: KindBlank}) {
			return
		}
		if !b.emit(yield) {
			return
		}
	}
}

func headerLines(r receipt.Receipt, yield func(Line) bool) bool {
	if r.Store.Logo != nil && !yield(Line{Block: BlockHeader, Kind: KindLogo}) {
		return false
	}
	if !yield(Line{Block: BlockHeader, Kind: KindText, Left: oneLine(r.Store.Name), Emphasis: true}) {
		return false
	}
	for _, l := range splitLines(r.Store.Address) {
		if !yield(Line{Block: BlockHeader, Kind: KindText, Left: l}) {
			return false
		}
	}
	if r.Store.Phone != "" {
		return yield(Line{Block: BlockHeader, Kind: KindText, Left: oneLine(r.Store.Phone)})
	}
	return true
}

func itemLines(r receipt.Receipt, yield func(Line) bool) bool {
	for _, item := range r.Items {
		left := strings.TrimSpace(oneLine(item.Code) + " " + oneLine(item.Description))
		line := Line{Block: BlockItems, Kind: KindComment, Left: left}
		if !item.UnitAmount.IsZero() {
			line.Kind = KindItem
			line.Right = totals.Format2(item.UnitAmount) + " " + string(item.TaxClass)
		}
		if !yield(line) {
			return false
		}
		for _, l := range splitLines(item.Description2) {
			if !yield(Line{Block: BlockItems, Kind: KindDetail, Left: l}) {
				return false
			}
		}
	}
	return true
}

func totalLines(t totals.Totals, yield func(Line) bool) bool {
	rows := []struct {
		label string
		value string
	}{
		{LabelSubtotal, totals.Format2(t.Subtotal)},
		{LabelTax, totals.Format2(t.Tax)},
		{LabelTotal, totals.Format2(t.Total)},
		{LabelCash, totals.Format2(t.Cash)},
		{LabelChange, totals.Format2(t.Change)},
	}
	for _, row := range rows {
		if !yield(Line{Block: BlockTotals, Kind: KindTotal, Left: row.label, Right: row.value, Emphasis: row.label == LabelTotal}) {
			return false
		}
	}
	return true
}

func footerLines(r receipt.Receipt, code barcode.Code, yield func(Line) bool) bool {
	ids := r.Identifiers
	text := strings.Split(lineBreaks.Replace(ids.RegisterInfo), "\n")
	text = append(text,
		"STR TRANS "+oneLine(ids.TransactionNumber),
		"STORE "+oneLine(ids.StoreNumber),
		"DATE "+r.FormattedDate()+" "+r.FormattedTime(),
		"# OF ITEMS SOLD "+strconv.Itoa(r.ItemCount()),
	)
	for _, l := range text {
		if !yield(Line{Block: BlockFooter, Kind: KindText, Left: l}) {
			return false
		}
	}
	if !yield(Line{Block: BlockFooter, Kind: KindBarcode, Left: code.Payload}) {
		return false
	}
	if !yield(Line{Block: BlockFooter, Kind: KindText, Left: "#" + code.Payload}) {
		return false
	}
	for _, l := range splitLines(r.Messages.Promo) {
		if !yield(Line{Block: BlockFooter, Kind: KindText, Left: l, Emphasis: true}) {
			return false
		}
	}
	for _, l := range splitLines(r.Messages.Survey) {
		if !yield(Line{Block: BlockFooter, Kind: KindText, Left: l}) {
			return false
		}
	}
	return yield(Line{Block: BlockFooter, Kind: KindText, Left: "Ref No. " + oneLine(ids.ReferenceNumber)})
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// splitLines keeps each line verbatim; empty text yields no lines
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(lineBreaks.Replace(s), "\n")
}

var foldBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// oneLine folds line breaks into spaces for fields printed on a single line
func oneLine(s string) string {
	return foldBreaks.Replace(s)
}
