package inventory

import (
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeLedgerTransaction is the aggregate type of ledger events
const AggregateTypeLedgerTransaction = "LedgerTransaction"

// Event type constants
const (
	EventTypeStockReceived    = "inventory.stock_received"
	EventTypeInventoryChanged = "inventory.changed"
)

// ReceivedLine is one line of a goods receipt
type ReceivedLine struct {
	ItemID      uuid.UUID       `json:"item_id"`
	BatchID     uuid.UUID       `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// StockReceivedEvent is raised when a GRN brings new batches into a store
type StockReceivedEvent struct {
	shared.BaseDomainEvent
	GRNNumber   string         `json:"grn_number"`
	StoreID     uuid.UUID      `json:"store_id"`
	Source      string         `json:"source"`
	RequestID   *uuid.UUID     `json:"request_id,omitempty"`
	RequesterID string         `json:"requester_id,omitempty"`
	Lines       []ReceivedLine `json:"lines"`
}

// NewStockReceivedEvent creates a StockReceivedEvent
func NewStockReceivedEvent(txn *LedgerTransaction, storeID uuid.UUID, source string, lines []ReceivedLine) *StockReceivedEvent {
	return &StockReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReceived, AggregateTypeLedgerTransaction, txn.ID),
		GRNNumber:       txn.Number,
		StoreID:         storeID,
		Source:          source,
		RequestID:       txn.RequestID,
		Lines:           lines,
	}
}

// InventoryChangedEvent tells downstream caches which owners and items moved
type InventoryChangedEvent struct {
	shared.BaseDomainEvent
	TransactionNumber string          `json:"transaction_number"`
	TransactionType   TransactionType `json:"transaction_type"`
	Owners            []Owner         `json:"owners"`
	ItemIDs           []uuid.UUID     `json:"item_ids"`
}

// NewInventoryChangedEvent builds the event from the entries of a transaction
func NewInventoryChangedEvent(txn *LedgerTransaction) *InventoryChangedEvent {
	owners := make([]Owner, 0)
	items := make([]uuid.UUID, 0)
	seenOwner := make(map[string]struct{})
	seenItem := make(map[uuid.UUID]struct{})
	for i := range txn.Entries {
		e := &txn.Entries[i]
		o := e.Owner()
		if _, ok := seenOwner[o.Key()]; !ok {
			seenOwner[o.Key()] = struct{}{}
			owners = append(owners, o)
		}
		if _, ok := seenItem[e.ItemID]; !ok {
			seenItem[e.ItemID] = struct{}{}
			items = append(items, e.ItemID)
		}
	}
	return &InventoryChangedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeInventoryChanged, AggregateTypeLedgerTransaction, txn.ID),
		TransactionNumber: txn.Number,
		TransactionType:   txn.Type,
		Owners:            owners,
		ItemIDs:           items,
	}
}
