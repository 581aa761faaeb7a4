package inventory

import (
	"context"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemFilter narrows item listings
type ItemFilter struct {
	shared.Filter
	Search string
}

// ItemRepository defines persistence for items
type ItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// FindByIDs returns the items keyed by id; missing ids are simply absent
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Item, error)
	FindAll(ctx context.Context, filter ItemFilter) ([]Item, int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoreRepository defines persistence for stores
type StoreRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Store, error)
	FindByKind(ctx context.Context, kind StoreKind) ([]Store, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Store, int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, store *Store) error
}

// ContractorRepository defines persistence for contractors
type ContractorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Contractor, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Contractor, int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, contractor *Contractor) error
}

// BatchRepository stores immutable batches
type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Batch, error)
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// BatchHolding is a batch-stock row joined with its batch
type BatchHolding struct {
	Stock BatchStock
	Batch Batch
}

// Candidate converts the holding into an allocator candidate
func (h BatchHolding) Candidate() BatchCandidate {
	return h.Batch.Candidate(h.Stock.RemainingQuantity)
}

// BatchStockRepository stores per-owner batch quantities.
// Mutating methods must be called with the (owner, item) lock held.
type BatchStockRepository interface {
	// FindAvailable returns the owner's rows for the item with remaining > 0, in FIFO order
	FindAvailable(ctx context.Context, owner Owner, itemID uuid.UUID) ([]BatchHolding, error)
	// FindByOwner lists holdings of an owner, optionally for one item, including empty rows when includeEmpty
	FindByOwner(ctx context.Context, owner Owner, itemID *uuid.UUID, includeEmpty bool) ([]BatchHolding, error)
	// FindOne returns the row for owner and batch, or nil when absent
	FindOne(ctx context.Context, owner Owner, batchID uuid.UUID) (*BatchStock, error)
	Save(ctx context.Context, stock *BatchStock) error
}

// OwnerStockRepository stores owner totals and provides the owner-item lock
type OwnerStockRepository interface {
	// LockForUpdate creates the row if missing and takes an exclusive row lock on it
	// for the rest of the enclosing transaction
	LockForUpdate(ctx context.Context, key OwnerItemKey) (*OwnerStock, error)
	FindByOwner(ctx context.Context, owner Owner) ([]OwnerStock, error)
	Save(ctx context.Context, stock *OwnerStock) error
	// FindDrift lists owner-items whose total differs from the sum of their batch rows
	FindDrift(ctx context.Context) ([]StockDrift, error)
}

// EntryFilter selects ledger entries
type EntryFilter struct {
	shared.Filter
	Owner        *Owner
	Counterparty *Owner
	ItemID       *uuid.UUID
	EntryType    *EntryType
	RequestID    *uuid.UUID
	From         *time.Time
	To           *time.Time // exclusive
}

// LedgerRepository appends and reads ledger transactions and entries
type LedgerRepository interface {
	// Create inserts the transaction header with all of its entries
	Create(ctx context.Context, txn *LedgerTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerTransaction, error)
	// ListEntries returns one page of entries newest first, plus the total count
	ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, int64, error)
	// FindEntries returns every matching entry in posting order
	FindEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error)
	// SumByItem returns the signed quantity per item over the matching entries; paging is ignored
	SumByItem(ctx context.Context, filter EntryFilter) (map[uuid.UUID]decimal.Decimal, error)
}
