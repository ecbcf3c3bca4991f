package enums

import "fmt"

// StockMovementReason classifies why an inventory quantity changed.
type StockMovementReason string

const (
	StockMovementReasonSale       StockMovementReason = "sale"
	StockMovementReasonReturn     StockMovementReason = "return"
	StockMovementReasonAdjustment StockMovementReason = "adjustment"
	StockMovementReasonDamaged    StockMovementReason = "damaged"
	StockMovementReasonRestock    StockMovementReason = "restock"
	StockMovementReasonLost       StockMovementReason = "lost"
)

var validStockMovementReasons = []StockMovementReason{
	StockMovementReasonSale,
	StockMovementReasonReturn,
	StockMovementReasonAdjustment,
	StockMovementReasonDamaged,
	StockMovementReasonRestock,
	StockMovementReasonLost,
}

// String implements fmt.Stringer.
func (s StockMovementReason) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockMovementReason.
func (s StockMovementReason) IsValid() bool {
	for _, candidate := range validStockMovementReasons {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockMovementReason converts raw input into a StockMovementReason.
func ParseStockMovementReason(value string) (StockMovementReason, error) {
	for _, candidate := range validStockMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement reason %q", value)
}
