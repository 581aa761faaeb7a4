package inventory

import (
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DefaultWastageReasonMinLength is the shortest justification accepted for out-of-policy wastage
const DefaultWastageReasonMinLength = 5

var hundred = decimal.NewFromInt(100)

// WastageChecker enforces an item's wastage policy before any ledger mutation
type WastageChecker struct {
	ReasonMinLength int
}

// NewWastageChecker creates a checker; non-positive lengths fall back to the default
func NewWastageChecker(reasonMinLength int) WastageChecker {
	if reasonMinLength <= 0 {
		reasonMinLength = DefaultWastageReasonMinLength
	}
	return WastageChecker{ReasonMinLength: reasonMinLength}
}

// AllowedWastage returns usedQuantity * maxWastagePercent / 100
func AllowedWastage(policy WastagePolicy, usedQuantity decimal.Decimal) decimal.Decimal {
	return valueobject.RoundQuantity(usedQuantity.Mul(policy.MaxWastagePercent).Div(hundred))
}

// Check returns a PolicyViolation when wastage is disallowed, or exceeds the
// allowed share of usedQuantity, and no sufficiently long reason is given
func (c WastageChecker) Check(item *Item, quantity, usedQuantity decimal.Decimal, reason string) error {
	if usedQuantity.IsNegative() {
		return shared.NewValidationError("used quantity cannot be negative")
	}
	justified := len([]rune(strings.TrimSpace(reason))) >= c.ReasonMinLength
	if justified {
		return nil
	}

	policy := item.WastagePolicy
	if !policy.Allowed {
		return shared.NewPolicyViolationError(
			"Wastage is not allowed for item "+item.Code+" without a justification",
			map[string]any{
				"item_id":           item.ID.String(),
				"reason_min_length": c.ReasonMinLength,
			},
		)
	}

	limit := AllowedWastage(policy, usedQuantity)
	if valueobject.Exceeds(quantity, limit) {
		percent := decimal.Zero
		if usedQuantity.IsPositive() {
			percent = quantity.Mul(hundred).Div(usedQuantity).Round(2)
		}
		return shared.NewPolicyViolationError(
			"Wastage for item "+item.Code+" exceeds the allowed percentage without a justification",
			map[string]any{
				"item_id":             item.ID.String(),
				"quantity":            valueobject.RoundQuantity(quantity).String(),
				"used_quantity":       valueobject.RoundQuantity(usedQuantity).String(),
				"allowed_quantity":    limit.String(),
				"wastage_percent":     percent.String(),
				"max_wastage_percent": policy.MaxWastagePercent.String(),
				"reason_min_length":   c.ReasonMinLength,
			},
		)
	}
	return nil
}
