package inventory

import (
	"context"
	"fmt"

	"github.com/fieldops/stockledger/internal/domain/inventory"
)

// LockedTotals holds the owner-total rows whose locks are held by the current transaction
type LockedTotals map[inventory.OwnerItemKey]*inventory.OwnerStock

// Get returns the locked total for key or fails if the lock was never taken
func (t LockedTotals) Get(key inventory.OwnerItemKey) (*inventory.OwnerStock, error) {
	total, ok := t[key]
	if !ok {
		return nil, fmt.Errorf("owner-item lock not held for %s", key)
	}
	return total, nil
}

// WithOwnerItemLock is the critical section of every batch-stock mutation.
//
// It takes an exclusive row lock on the owner-total row of every key (creating
// the row if it does not exist yet) in lexical key order, then runs fn. The
// locks live until the enclosing transaction commits or rolls back, so it must
// be called with repositories from TransactionScope.Execute. Lexical order
// keeps two symmetric cross-owner moves from deadlocking each other.
func WithOwnerItemLock(ctx context.Context, repos TransactionalRepositories, keys []inventory.OwnerItemKey, fn func(totals LockedTotals) error) error {
	totals := make(LockedTotals, len(keys))
	for _, key := range inventory.SortedLockKeys(keys...) {
		if err := key.Owner.Validate(); err != nil {
			return err
		}
		total, err := repos.OwnerStocks().LockForUpdate(ctx, key)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		totals[key] = total
	}
	return fn(totals)
}
