package orders

import (
	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// Totals is the money snapshot for an order, in whole cents.
type Totals struct {
	SubtotalCents int
	ShippingCents int
	TaxCents      int
	DiscountCents int
	TotalCents    int
}

// ComputeTotals applies the flat shipping and tax rules to a subtotal.
// Shipping is free above the threshold. Tax is charged only on the
// payment-session path; the direct/COD path passes withTax=false.
// The tax amount rounds half up to the nearest cent.
func ComputeTotals(subtotalCents int, withTax bool, cfg config.CheckoutConfig) Totals {
	totals := Totals{SubtotalCents: subtotalCents}

	if subtotalCents <= cfg.FreeShippingThresholdCents {
		totals.ShippingCents = cfg.ShippingFlatCents
	}

	if withTax {
		tax := decimal.NewFromInt(int64(subtotalCents)).
			Mul(decimal.NewFromFloat(cfg.TaxRate)).
			Round(0)
		totals.TaxCents = int(tax.IntPart())
	}

	totals.TotalCents = totals.SubtotalCents + totals.ShippingCents + totals.TaxCents - totals.DiscountCents
	return totals
}
