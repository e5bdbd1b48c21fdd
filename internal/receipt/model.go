package receipt

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned when an edit names a field the receipt does not have
	ErrUnknownField = errors.New("unknown field")
	// ErrReadOnlyField is returned when an edit targets a field that is fixed once set
	ErrReadOnlyField = errors.New("field is read-only")
)

// Receipt field names as sent by the editing UI
const (
	FieldStoreName          = "storeName"
	FieldStoreAddress       = "storeAddress"
	FieldPhone              = "phone"
	FieldCashTendered       = "cashTendered"
	FieldRegisterInfo       = "registerInfo"
	FieldTransactionNumber  = "transactionNumber"
	FieldStoreNumber        = "storeNumber"
	FieldBarcode            = "barcode"
	FieldReferenceNumber    = "referenceNumber"
	FieldDate               = "date"
	FieldTime               = "time"
	FieldDateFormat         = "dateFormat"
	FieldPromoMessage       = "promoMessage"
	FieldSurveyInstructions = "surveyInstructions"
	FieldAcceptedTerms      = "acceptedTerms"
)

// Line item field names
const (
	ItemCode         = "code"
	ItemDescription  = "description"
	ItemDescription2 = "description2"
	ItemUnitAmount   = "unitAmount"
	ItemTaxClass     = "taxClass"
)

// SetField returns a snapshot with the named field set from user text.
// Malformed values are coerced, never reported.
func (r Receipt) SetField(name, value string) (Receipt, error) {
	next := r.clone()
	switch name {
	case FieldStoreName:
		if r.Store.Name != "" {
			return r, fmt.Errorf("setting %s: %w", name, ErrReadOnlyField)
		}
		next.Store.Name = value
	case FieldStoreAddress:
		next.Store.Address = value
	case FieldPhone:
		next.Store.Phone = value
	case FieldCashTendered:
		next.Payment.CashTendered = ParseCash(value)
	case FieldRegisterInfo:
		next.Identifiers.RegisterInfo = value
	case FieldTransactionNumber:
		next.Identifiers.TransactionNumber = value
	case FieldStoreNumber:
		next.Identifiers.StoreNumber = value
	case FieldBarcode:
		next.Identifiers.BarcodeRaw = value
	case FieldReferenceNumber:
		next.Identifiers.ReferenceNumber = value
	case FieldDate:
		if d, ok := parseDate(value); ok {
			next.Timestamps.Date = d
		}
	case FieldTime:
		if t, ok := parseClock(value); ok {
			next.Timestamps.Time = t
		}
	case FieldDateFormat:
		if f, ok := ParseDateFormat(value); ok {
			next.Timestamps.Format = f
		}
	case FieldPromoMessage:
		next.Messages.Promo = value
	case FieldSurveyInstructions:
		next.Messages.Survey = value
	case FieldAcceptedTerms:
		next.AcceptedTerms = parseBool(value)
	default:
		return r, fmt.Errorf("setting %q: %w", name, ErrUnknownField)
	}
	return next, nil
}

// WithLogo returns a snapshot carrying the given logo
func (r Receipt) WithLogo(logo *Logo) Receipt {
	next := r.clone()
	next.Store.Logo = logo
	return next
}

// WithoutLogo returns a snapshot with the logo removed
func (r Receipt) WithoutLogo() Receipt {
	return r.WithLogo(nil)
}

// AddItem appends a blank taxable item
func (r Receipt) AddItem() Receipt {
	next := r.clone()
	next.Items = append(next.Items, LineItem{TaxClass: Taxable})
	return next
}

// RemoveItem drops the item at index, shifting later items down.
// An out-of-range index returns the snapshot unchanged.
func (r Receipt) RemoveItem(index int) Receipt {
	if index < 0 || index >= len(r.Items) {
		return r
	}
	next := r
	next.Items = make([]LineItem, 0, len(r.Items)-1)
	next.Items = append(next.Items, r.Items[:index]...)
	next.Items = append(next.Items, r.Items[index+1:]...)
	return next
}

// UpdateItem sets one field of the item at index from user text.
// An out-of-range index returns the snapshot unchanged without error.
func (r Receipt) UpdateItem(index int, field, value string) (Receipt, error) {
	if index < 0 || index >= len(r.Items) {
		return r, nil
	}
	next := r.clone()
	item := &next.Items[index]
	switch field {
	case ItemCode:
		item.Code = value
	case ItemDescription:
		item.Description = value
	case ItemDescription2:
		item.Description2 = value
	case ItemUnitAmount:
		item.UnitAmount = ParseAmount(value)
	case ItemTaxClass:
		if c, ok := ParseTaxClass(value); ok {
			item.TaxClass = c
		}
	default:
		return r, fmt.Errorf("updating item %d field %q: %w", index, field, ErrUnknownField)
	}
	return next, nil
}

// Clear empties the items and the tender while keeping all header,
// identifier and message text.
func (r Receipt) Clear() Receipt {
	next := r
	next.Items = []LineItem{}
	next.Payment = Payment{}
	return next
}
