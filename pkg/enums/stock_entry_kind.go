package enums

import "fmt"

// StockEntryKind is the closed set of causes for a stock adjustment.
// Audit queries filter on the kind plus the structured order/actor
// columns rather than parsing free text.
type StockEntryKind string

const (
	StockEntryKindOrderPlaced StockEntryKind = "order_placed"
	StockEntryKindRestock     StockEntryKind = "restock"
	StockEntryKindReservation StockEntryKind = "reservation"
	StockEntryKindAdjustment  StockEntryKind = "adjustment"
)

var validStockEntryKinds = []StockEntryKind{
	StockEntryKindOrderPlaced,
	StockEntryKindRestock,
	StockEntryKindReservation,
	StockEntryKindAdjustment,
}

// String implements fmt.Stringer.
func (k StockEntryKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known StockEntryKind.
func (k StockEntryKind) IsValid() bool {
	for _, candidate := range validStockEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseStockEntryKind converts raw input into a StockEntryKind.
func ParseStockEntryKind(value string) (StockEntryKind, error) {
	for _, candidate := range validStockEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock entry kind %q", value)
}
