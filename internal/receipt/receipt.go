package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxClass classifies whether a line item contributes to the taxed base
type TaxClass string

const (
	Taxable    TaxClass = "P"
	NonTaxable TaxClass = "N"
)

// DateFormat selects how the receipt date is printed
type DateFormat string

const (
	MDY DateFormat = "MDY"
	DMY DateFormat = "DMY"
	YMD DateFormat = "YMD"
)

// Layout returns the time layout string for the format
func (f DateFormat) Layout() string {
	switch f {
	case MDY:
		return "01/02/2006"
	case DMY:
		return "02/01/2006"
	default:
		return "2006-01-02"
	}
}

// Logo is an accepted store logo, always normalized to PNG
type Logo struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
}

// Store holds the header identity of the receipt
type Store struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Logo    *Logo  `json:"logo,omitempty"`
}

// LineItem is one purchasable entry. Items are identified by position.
type LineItem struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Description2 string          `json:"description2,omitempty"`
	UnitAmount   decimal.Decimal `json:"unit_amount"`
	TaxClass     TaxClass        `json:"tax_class"`
}

// Payment holds the tender. An invalid CashTendered means no amount was entered.
type Payment struct {
	CashTendered decimal.NullDecimal `json:"cash_tendered"`
}

// Identifiers are opaque display strings printed in the footer
type Identifiers struct {
	RegisterInfo      string `json:"register_info"`
	TransactionNumber string `json:"transaction_number"`
	StoreNumber       string `json:"store_number"`
	BarcodeRaw        string `json:"barcode"`
	ReferenceNumber   string `json:"reference_number"`
}

// Timestamps holds the printed date and clock time
type Timestamps struct {
	Date   time.Time     `json:"date"` // UTC midnight
	Time   time.Duration `json:"time"` // offset from midnight
	Format DateFormat    `json:"date_format"`
}

// Messages holds the free text printed below the barcode
type Messages struct {
	Promo  string `json:"promo_message"`
	Survey string `json:"survey_instructions"`
}

// Receipt is an immutable snapshot of the receipt being composed.
// Every mutation returns a new Receipt; the items slice is never shared.
type Receipt struct {
	Store         Store       `json:"store"`
	Items         []LineItem  `json:"items"`
	Payment       Payment     `json:"payment"`
	Identifiers   Identifiers `json:"identifiers"`
	Timestamps    Timestamps  `json:"timestamps"`
	Messages      Messages    `json:"messages"`
	AcceptedTerms bool        `json:"accepted_terms"`
}

// ItemCount returns the number of line items
func (r Receipt) ItemCount() int {
	return len(r.Items)
}

// FormattedDate renders the date per the configured display format
func (r Receipt) FormattedDate() string {
	return r.Timestamps.Date.Format(r.Timestamps.Format.Layout())
}

// FormattedTime renders the clock time as HH:MM
func (r Receipt) FormattedTime() string {
	return time.Time{}.Add(r.Timestamps.Time).Format("15:04")
}

// clone returns a copy whose items slice does not alias r's
func (r Receipt) clone() Receipt {
	c := r
	c.Items = make([]LineItem, len(r.Items))
	copy(c.Items, r.Items)
	return c
}
