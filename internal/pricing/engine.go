package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10000

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal    Money `json:"subtotal"`
	Discount    Money `json:"discount"`
	Tax         Money `json:"tax"`
	Total       Money `json:"total"`
	DiscountBps int   `json:"discountBps"`
	TaxBps      int   `json:"taxBps"`
}

// Price calculates cart totals. discount = subtotal*discountBps/10000,
// tax = (subtotal-discount)*taxBps/10000, total = subtotal-discount+tax.
// Fractions are truncated toward zero. Rates outside [0,10000] are clamped.
func Price(items []Item, discountBps, taxBps int) Summary {
	discountBps = ClampBps(discountBps)
	taxBps = ClampBps(taxBps)
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	discount := subtotal * Money(discountBps) / BpsDenominator
	taxable := subtotal - discount
	tax := taxable * Money(taxBps) / BpsDenominator
	return Summary{
		Subtotal:    subtotal,
		Discount:    discount,
		Tax:         tax,
		Total:       taxable + tax,
		DiscountBps: discountBps,
		TaxBps:      taxBps,
	}
}

// ClampBps bounds a rate to [0, 10000].
func ClampBps(bps int) int {
	if bps < 0 {
		return 0
	}
	if bps > BpsDenominator {
		return BpsDenominator
	}
	return bps
}

// PercentToBps converts a whole-number percentage (e.g. 10 for 10%) to bps.
func PercentToBps(percent float64) int {
	return int(percent*100 + 0.5)
}
