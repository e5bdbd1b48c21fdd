// Package totals derives the financial figures printed on a receipt.
package totals

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-studio/internal/receipt"
)

// TaxBase selects which items the tax rate applies to
type TaxBase string

const (
	// TaxableSubsetOnly taxes only items classed Taxable
	TaxableSubsetOnly TaxBase = "taxable"
	// FullSubtotal taxes every item regardless of class
	FullSubtotal TaxBase = "full"
)

// ParseTaxBase accepts "taxable" or "full"
func ParseTaxBase(s string) (TaxBase, error) {
	switch b := TaxBase(strings.ToLower(strings.TrimSpace(s))); b {
	case TaxableSubsetOnly, FullSubtotal:
		return b, nil
	}
	return "", fmt.Errorf("unknown tax base %q (want %q or %q)", s, TaxableSubsetOnly, FullSubtotal)
}

// Policy holds the tax configuration
type Policy struct {
	Rate decimal.Decimal
	Base TaxBase
}

// DefaultPolicy is an 8% rate applied to taxable items only
func DefaultPolicy() Policy {
	return Policy{
		Rate: decimal.RequireFromString("0.08"),
		Base: TaxableSubsetOnly,
	}
}

// Totals are the derived figures for one receipt snapshot
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxableSubtotal decimal.Decimal `json:"taxable_subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	Cash            decimal.Decimal `json:"cash"`
	Change          decimal.Decimal `json:"change"`
	// CashTendered reports whether a tender was entered at all
	CashTendered bool `json:"cash_tendered"`
	// ChangeComputed is false when Change is only the zero placeholder
	ChangeComputed bool `json:"change_computed"`
}

// Compute derives totals from a snapshot. Each derived value is rounded once,
// half away from zero, from unrounded inputs.
func Compute(r receipt.Receipt, p Policy) Totals {
	subtotal := decimal.Zero
	taxable := decimal.Zero
	for _, item := range r.Items {
		subtotal = subtotal.Add(item.UnitAmount)
		if item.TaxClass == receipt.Taxable {
			taxable = taxable.Add(item.UnitAmount)
		}
	}

	base := taxable
	if p.Base == FullSubtotal {
		base = subtotal
	}
	tax := base.Mul(p.Rate).Round(2)
	total := subtotal.Add(tax).Round(2)

	t := Totals{
		Subtotal:        subtotal,
		TaxableSubtotal: taxable,
		Tax:             tax,
		Total:           total,
		Cash:            decimal.Zero,
		Change:          decimal.Zero,
	}
	if cash := r.Payment.CashTendered; cash.Valid {
		t.Cash = cash.Decimal
		t.CashTendered = true
		t.Change = cash.Decimal.Sub(total).Round(2)
		t.ChangeComputed = true
	}
	return t
}

// Format2 renders an amount with exactly two decimals
func Format2(d decimal.Decimal) string {
	return d.StringFixed(2)
}
