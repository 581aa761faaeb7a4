package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(number string, remaining float64, receivedAt time.Time) BatchCandidate {
	return BatchCandidate{
		BatchID:     uuid.New(),
		BatchNumber: number,
		ReceivedAt:  receivedAt,
		Remaining:   decimal.NewFromFloat(remaining),
		UnitCost:    decimal.NewFromInt(10),
	}
}

func TestFIFOAllocator_Pick(t *testing.T) {
	allocator := NewFIFOAllocator()
	owner := StoreOwner(uuid.New())
	itemID := uuid.New()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("takes oldest batch first", func(t *testing.T) {
		b1 := candidate("GRN-1-1", 5, base)
		b2 := candidate("GRN-2-1", 5, base.Add(time.Hour))

		// newer batch listed first to prove ordering is not positional
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(7), []BatchCandidate{b2, b1})
		require.NoError(t, err)
		require.Len(t, result.Deductions, 2)

		assert.Equal(t, b1.BatchID, result.Deductions[0].BatchID)
		assert.True(t, result.Deductions[0].Quantity.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, b2.BatchID, result.Deductions[1].BatchID)
		assert.True(t, result.Deductions[1].Quantity.Equal(decimal.NewFromInt(2)))
		assert.True(t, result.TotalQuantity().Equal(decimal.NewFromInt(7)))
	})

	t.Run("exact fit uses a single batch", func(t *testing.T) {
		b1 := candidate("A", 5, base)
		b2 := candidate("B", 5, base.Add(time.Minute))
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(5), []BatchCandidate{b1, b2})
		require.NoError(t, err)
		require.Len(t, result.Deductions, 1)
		assert.Equal(t, b1.BatchID, result.Deductions[0].BatchID)
	})

	t.Run("ties on receipt time break on batch number", func(t *testing.T) {
		b1 := candidate("GRN-9-2", 3, base)
		b2 := candidate("GRN-9-1", 3, base)
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(4), []BatchCandidate{b1, b2})
		require.NoError(t, err)
		assert.Equal(t, b2.BatchID, result.Deductions[0].BatchID)
		assert.True(t, result.Deductions[1].Quantity.Equal(decimal.NewFromInt(1)))
	})

	t.Run("receipt lines of one GRN are taken in line order", func(t *testing.T) {
		candidates := make([]BatchCandidate, 0, 11)
		for line := 11; line >= 1; line-- {
			candidates = append(candidates, candidate(BatchNumber("GRN-7", line), 1, base))
		}
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(3), candidates)
		require.NoError(t, err)
		require.Len(t, result.Deductions, 3)

		byID := make(map[uuid.UUID]string, len(candidates))
		for _, c := range candidates {
			byID[c.BatchID] = c.BatchNumber
		}
		assert.Equal(t, "GRN-7-001", byID[result.Deductions[0].BatchID])
		assert.Equal(t, "GRN-7-002", byID[result.Deductions[1].BatchID])
		assert.Equal(t, "GRN-7-003", byID[result.Deductions[2].BatchID])
	})

	t.Run("skips empty batches", func(t *testing.T) {
		empty := candidate("A", 0, base)
		full := candidate("B", 4, base.Add(time.Minute))
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(2), []BatchCandidate{empty, full})
		require.NoError(t, err)
		require.Len(t, result.Deductions, 1)
		assert.Equal(t, full.BatchID, result.Deductions[0].BatchID)
	})

	t.Run("shortfall names item and amount", func(t *testing.T) {
		b1 := candidate("A", 5, base)
		b2 := candidate("B", 5, base.Add(time.Minute))
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(15), []BatchCandidate{b1, b2})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, itemID.String(), domainErr.Details["item_id"])
		assert.Equal(t, "5", domainErr.Details["shortfall"])
		assert.Equal(t, "10", domainErr.Details["available"])
		// candidates untouched
		assert.True(t, b1.Remaining.Equal(decimal.NewFromInt(5)))
	})

	t.Run("applies no tolerance", func(t *testing.T) {
		b1 := candidate("A", 5, base)
		_, err := allocator.Pick(owner, itemID, decimal.RequireFromString("5.0001"), []BatchCandidate{b1})
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := allocator.Pick(owner, itemID, decimal.Zero, nil)
		assert.True(t, errors.Is(err, shared.ErrValidation))
		_, err = allocator.Pick(owner, itemID, decimal.NewFromInt(-1), nil)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("rounds fractional quantities to four places", func(t *testing.T) {
		b1 := candidate("A", 1.33333, base)
		result, err := allocator.Pick(owner, itemID, decimal.RequireFromString("1.33331"), []BatchCandidate{b1})
		require.NoError(t, err)
		assert.Equal(t, "1.3333", result.Deductions[0].Quantity.String())
	})

	t.Run("total cost follows batch unit cost", func(t *testing.T) {
		b1 := candidate("A", 2, base)
		b2 := candidate("B", 2, base.Add(time.Minute))
		b2.UnitCost = decimal.NewFromInt(12)
		result, err := allocator.Pick(owner, itemID, decimal.NewFromInt(3), []BatchCandidate{b1, b2})
		require.NoError(t, err)
		assert.True(t, result.TotalCost().Equal(decimal.NewFromInt(32)))
	})
}
