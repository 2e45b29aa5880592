package enums

import "fmt"

// StockAdjustmentKind marks the direction of a stock movement tied to an
// order line. Each line gets at most one adjustment per kind.
type StockAdjustmentKind string

const (
	StockAdjustmentReserve StockAdjustmentKind = "reserve"
	StockAdjustmentRelease StockAdjustmentKind = "release"
)

var validStockAdjustmentKinds = []StockAdjustmentKind{
	StockAdjustmentReserve,
	StockAdjustmentRelease,
}

// String implements fmt.Stringer.
func (s StockAdjustmentKind) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockAdjustmentKind.
func (s StockAdjustmentKind) IsValid() bool {
	for _, candidate := range validStockAdjustmentKinds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockAdjustmentKind converts raw input into a StockAdjustmentKind.
func ParseStockAdjustmentKind(value string) (StockAdjustmentKind, error) {
	for _, candidate := range validStockAdjustmentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock adjustment kind %q", value)
}
