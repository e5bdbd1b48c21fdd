package receipt

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount a money field accepts
var MaxAmount = decimal.New(1, 9)

// maxFractionDigits bounds the precision kept from user input
const maxFractionDigits = 10

// parseDecimal parses user-entered money text, tolerating a leading "$".
// Exponent notation and amounts beyond MaxAmount are unusable.
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, false
	}
	if d.Exponent() < -maxFractionDigits {
		d = d.Truncate(maxFractionDigits)
	}
	return d, true
}

// ParseAmount coerces text to a non-negative amount. Anything unusable is 0.
func ParseAmount(s string) decimal.Decimal {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseCash coerces text to a tendered amount. Blank, unparsable or negative
// input clears the tender instead of recording zero.
func ParseCash(s string) decimal.NullDecimal {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ParseTaxClass accepts the printed markers and their spelled-out names
func ParseTaxClass(s string) (TaxClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "taxable":
		return Taxable, true
	case "n", "nontaxable", "non-taxable":
		return NonTaxable, true
	}
	return "", false
}

// ParseDateFormat accepts MDY, DMY or YMD in any case
func ParseDateFormat(s string) (DateFormat, bool) {
	switch f := DateFormat(strings.ToUpper(strings.TrimSpace(s))); f {
	case MDY, DMY, YMD:
		return f, true
	}
	return "", false
}

func parseDate(s string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func parseClock(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "on") {
		return true
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
