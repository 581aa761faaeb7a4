package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places every stored quantity is rounded to
const QuantityScale int32 = 4

// QuantityEpsilon is the tolerance used by "exceeds" comparisons
var QuantityEpsilon = decimal.New(1, -3)

// RoundQuantity rounds half away from zero to QuantityScale places
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityScale)
}

// IsPositiveQuantity reports whether d is greater than zero after rounding
func IsPositiveQuantity(d decimal.Decimal) bool {
	return RoundQuantity(d).IsPositive()
}

// Exceeds reports whether a is larger than b by more than QuantityEpsilon
func Exceeds(a, b decimal.Decimal) bool {
	return RoundQuantity(a).GreaterThan(RoundQuantity(b).Add(QuantityEpsilon))
}

// MinQuantity returns the smaller of a and b
func MinQuantity(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// SumQuantities adds the given quantities and rounds the total
func SumQuantities(quantities ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, q := range quantities {
		total = total.Add(q)
	}
	return RoundQuantity(total)
}

// ParseQuantity parses a decimal string into a rounded quantity
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return RoundQuantity(d), nil
}
