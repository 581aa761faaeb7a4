package inventory

import (
	"sort"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchCandidate is one of an owner's batch-stock rows offered to the allocator
type BatchCandidate struct {
	BatchID     uuid.UUID
	BatchNumber string
	ReceivedAt  time.Time
	Remaining   decimal.Decimal
	UnitCost    decimal.Decimal
}

// BatchDeduction is the quantity taken from one batch
type BatchDeduction struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// Cost returns quantity times unit cost
func (d BatchDeduction) Cost() decimal.Decimal {
	return d.Quantity.Mul(d.UnitCost)
}

// AllocationResult is the ordered plan for removing a quantity from an owner
type AllocationResult struct {
	Owner      Owner
	ItemID     uuid.UUID
	Requested  decimal.Decimal
	Deductions []BatchDeduction
}

// TotalCost sums the cost of every deduction
func (r *AllocationResult) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Deductions {
		total = total.Add(d.Cost())
	}
	return total
}

// TotalQuantity sums the deducted quantities
func (r *AllocationResult) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Deductions {
		total = total.Add(d.Quantity)
	}
	return valueobject.RoundQuantity(total)
}

// FIFOAllocator picks batches oldest first. It is pure: it never mutates candidates.
type FIFOAllocator struct{}

// NewFIFOAllocator creates a FIFO allocator
func NewFIFOAllocator() *FIFOAllocator {
	return &FIFOAllocator{}
}

// Pick selects batches for quantity in receipt order (then batch number, then id).
// No tolerance is applied: the request fails if it exceeds availability after rounding.
func (a *FIFOAllocator) Pick(owner Owner, itemID uuid.UUID, quantity decimal.Decimal, candidates []BatchCandidate) (*AllocationResult, error) {
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return nil, shared.NewValidationError("allocation quantity must be positive")
	}

	available := make([]BatchCandidate, 0, len(candidates))
	total := decimal.Zero
	for _, c := range candidates {
		rem := valueobject.RoundQuantity(c.Remaining)
		if !rem.IsPositive() {
			continue
		}
		c.Remaining = rem
		available = append(available, c)
		total = total.Add(rem)
	}
	if quantity.GreaterThan(total) {
		return nil, shared.NewInsufficientStockError(itemID, quantity, total).
			WithDetail("owner", owner.Key())
	}

	sort.SliceStable(available, func(i, j int) bool {
		if !available[i].ReceivedAt.Equal(available[j].ReceivedAt) {
			return available[i].ReceivedAt.Before(available[j].ReceivedAt)
		}
		if available[i].BatchNumber != available[j].BatchNumber {
			return available[i].BatchNumber < available[j].BatchNumber
		}
		return available[i].BatchID.String() < available[j].BatchID.String()
	})

	result := &AllocationResult{
		Owner:      owner,
		ItemID:     itemID,
		Requested:  quantity,
		Deductions: make([]BatchDeduction, 0, len(available)),
	}
	needed := quantity
	for _, c := range available {
		if !needed.IsPositive() {
			break
		}
		take := valueobject.MinQuantity(c.Remaining, needed)
		result.Deductions = append(result.Deductions, BatchDeduction{
			BatchID:     c.BatchID,
			BatchNumber: c.BatchNumber,
			Quantity:    take,
			UnitCost:    c.UnitCost,
		})
		needed = valueobject.RoundQuantity(needed.Sub(take))
	}
	return result, nil
}
