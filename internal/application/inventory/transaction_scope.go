package inventory

import (
	"context"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
)

// TransactionScope provides transactional access to ledger and workflow repositories.
// Every repository handed to fn shares one database transaction; the work is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories of one unit of work.
//
// Batch-stock and owner-total rows must only be mutated after the matching
// (owner, item) lock has been taken through WithOwnerItemLock.
type TransactionalRepositories interface {
	Items() inventory.ItemRepository
	Stores() inventory.StoreRepository
	Contractors() inventory.ContractorRepository
	Batches() inventory.BatchRepository
	BatchStocks() inventory.BatchStockRepository
	OwnerStocks() inventory.OwnerStockRepository
	Ledger() inventory.LedgerRepository
	StockRequests() requisition.StockRequestRepository
	// Events writes domain events to the outbox inside the same transaction
	Events() EventRecorder
}

// EventRecorder stores events for delivery after commit
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// DocumentNumberGenerator issues unique document numbers such as GRN-1789...
type DocumentNumberGenerator interface {
	Next(prefix string) string
}
