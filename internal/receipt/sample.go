package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default returns the demonstration receipt every new session starts from
func Default() Receipt {
	return Receipt{
		Store: Store{
			Name:    "AutoZone 4129",
			Address: "2413 W. SEVENTEENTH\nSANTA ANA, CA",
			Phone:   "(714) 554-1195",
		},
		Items: []LineItem{
			{
				Code:        "#370965",
				Description: "611-117, 2 @ 1/3.99",
				UnitAmount:  decimal.RequireFromString("7.98"),
				TaxClass:    Taxable,
			},
			{
				Code:        "611-117",
				Description: "Dorman M12-1.50 21m Hex WH Nut, EA",
				UnitAmount:  decimal.Zero,
				TaxClass:    Taxable,
			},
		},
		Payment: Payment{
			CashTendered: decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
		},
		Identifiers: Identifiers{
			RegisterInfo:      "REG #01, CSR #08, RECEIPT #168930",
			TransactionNumber: "#862071",
			StoreNumber:       "#4129",
			BarcodeRaw:        "#412986207114113",
			ReferenceNumber:   "4129-862071-141113-1",
		},
		Timestamps: Timestamps{
			Date:   time.Date(2014, time.November, 13, 0, 0, 0, 0, time.UTC),
			Time:   9*time.Hour + 49*time.Minute,
			Format: YMD,
		},
		Messages: Messages{
			Promo:  "You Could Be Earning $20...",
			Survey: "Take a survey for a chance to win $10000 at www.autozonecares.com",
		},
	}
}
