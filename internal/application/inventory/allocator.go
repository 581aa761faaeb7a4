package inventory

import (
	"context"
	"fmt"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocator is the FIFO allocator bound to persistence: lock, load candidates, pick.
// It never mutates rows; callers debit and credit from its result.
type Allocator struct {
	fifo *inventory.FIFOAllocator
}

// NewAllocator creates an Allocator
func NewAllocator() *Allocator {
	return &Allocator{fifo: inventory.NewFIFOAllocator()}
}

// Pick takes the (owner, item) lock, then selects batches oldest first.
// Taking a lock that the transaction already holds is a no-op.
func (a *Allocator) Pick(ctx context.Context, repos TransactionalRepositories, owner inventory.Owner, itemID uuid.UUID, quantity decimal.Decimal) (*inventory.AllocationResult, error) {
	var result *inventory.AllocationResult
	key := inventory.OwnerItemKey{Owner: owner, ItemID: itemID}
	err := WithOwnerItemLock(ctx, repos, []inventory.OwnerItemKey{key}, func(LockedTotals) error {
		holdings, err := repos.BatchStocks().FindAvailable(ctx, owner, itemID)
		if err != nil {
			return fmt.Errorf("load batches for %s: %w", key, err)
		}
		candidates := make([]inventory.BatchCandidate, len(holdings))
		for i, h := range holdings {
			candidates[i] = h.Candidate()
		}
		result, err = a.fifo.Pick(owner, itemID, quantity, candidates)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
