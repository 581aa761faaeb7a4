package inventory

import (
	"time"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Return line conditions
const (
	ConditionGood    = "GOOD"
	ConditionDamaged = "DAMAGED"
	ConditionLost    = "LOST"
)

// LineInput is an item and a positive quantity
type LineInput struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// CreateGRNCommand records goods arriving into a store
type CreateGRNCommand struct {
	StoreID   uuid.UUID    `json:"store_id" validate:"required"`
	Source    string       `json:"source" validate:"required,max=100"`
	Actor     shared.Actor `json:"-"`
	Lines     []LineInput  `json:"lines" validate:"required,min=1,max=999,dive"`
	RequestID *uuid.UUID   `json:"request_id"`
	Reference string       `json:"reference" validate:"max=100"`
	Notes     string       `json:"notes" validate:"max=2000"`
}

// IssueCommand moves stock from a store to a contractor
type IssueCommand struct {
	StoreID      uuid.UUID    `json:"store_id" validate:"required"`
	ContractorID uuid.UUID    `json:"contractor_id" validate:"required"`
	Actor        shared.Actor `json:"-"`
	Lines        []LineInput  `json:"lines" validate:"required,min=1,dive"`
	RequestID    *uuid.UUID   `json:"request_id"`
	Reference    string       `json:"reference" validate:"max=100"`
}

// TransferCommand moves stock directly between two stores
type TransferCommand struct {
	FromStoreID uuid.UUID    `json:"from_store_id" validate:"required"`
	ToStoreID   uuid.UUID    `json:"to_store_id" validate:"required"`
	Actor       shared.Actor `json:"-"`
	Lines       []LineInput  `json:"lines" validate:"required,min=1,dive"`
	Reference   string       `json:"reference" validate:"max=100"`
}

// ReturnLineInput is a returned item with its condition
type ReturnLineInput struct {
	ItemID    uuid.UUID       `json:"item_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	Condition string          `json:"condition" validate:"required,oneof=GOOD DAMAGED LOST"`
}

// ReturnCommand returns stock from a contractor to a store
type ReturnCommand struct {
	ContractorID uuid.UUID         `json:"contractor_id" validate:"required"`
	StoreID      uuid.UUID         `json:"store_id" validate:"required"`
	Actor        shared.Actor      `json:"-"`
	Lines        []ReturnLineInput `json:"lines" validate:"required,min=1,dive"`
	Reference    string            `json:"reference" validate:"max=100"`
}

// SupplierReturnCommand sends stock from a store back to the supplier (MRN)
type SupplierReturnCommand struct {
	StoreID   uuid.UUID    `json:"store_id" validate:"required"`
	Supplier  string       `json:"supplier" validate:"required,max=100"`
	Actor     shared.Actor `json:"-"`
	Lines     []LineInput  `json:"lines" validate:"required,min=1,dive"`
	Reason    string       `json:"reason" validate:"required,max=255"`
	Reference string       `json:"reference" validate:"max=100"`
}

// WastageCommand writes off stock consumed without output.
// StoreID names the issuing store when the owner is a contractor.
type WastageCommand struct {
	OwnerKind    inventory.OwnerKind `json:"owner_kind" validate:"required,oneof=STORE CONTRACTOR"`
	OwnerID      uuid.UUID           `json:"owner_id" validate:"required"`
	StoreID      *uuid.UUID          `json:"store_id"`
	ItemID       uuid.UUID           `json:"item_id" validate:"required"`
	Quantity     decimal.Decimal     `json:"quantity" validate:"gt=0"`
	UsedQuantity decimal.Decimal     `json:"used_quantity" validate:"gte=0"`
	Reason       string              `json:"reason" validate:"max=255"`
	Actor        shared.Actor        `json:"-"`
	Reference    string              `json:"reference" validate:"max=100"`
}

// Owner returns the owner the wastage is taken from
func (c WastageCommand) Owner() inventory.Owner {
	return inventory.Owner{Kind: c.OwnerKind, ID: c.OwnerID}
}

// UsageCommand records contractor consumption against a service order
type UsageCommand struct {
	ContractorID uuid.UUID    `json:"contractor_id" validate:"required"`
	StoreID      uuid.UUID    `json:"store_id" validate:"required"`
	Actor        shared.Actor `json:"-"`
	Lines        []LineInput  `json:"lines" validate:"required,min=1,dive"`
	Reference    string       `json:"reference" validate:"required,max=100"`
}

// LedgerEntryResponse is one ledger line
type LedgerEntryResponse struct {
	ID               uuid.UUID           `json:"id"`
	TransactionID    uuid.UUID           `json:"transaction_id"`
	EntryType        inventory.EntryType `json:"entry_type"`
	OwnerKind        inventory.OwnerKind `json:"owner_kind"`
	OwnerID          uuid.UUID           `json:"owner_id"`
	ItemID           uuid.UUID           `json:"item_id"`
	BatchID          *uuid.UUID          `json:"batch_id,omitempty"`
	Quantity         decimal.Decimal     `json:"quantity"`
	UnitCost         decimal.Decimal     `json:"unit_cost"`
	CounterpartyKind inventory.OwnerKind `json:"counterparty_kind,omitempty"`
	CounterpartyID   *uuid.UUID          `json:"counterparty_id,omitempty"`
	RequestID        *uuid.UUID          `json:"request_id,omitempty"`
	Reason           string              `json:"reason,omitempty"`
	Reference        string              `json:"reference,omitempty"`
	ActorID          string              `json:"actor_id"`
	CreatedAt        time.Time           `json:"created_at"`
}

// LedgerTransactionResponse is a posted transaction with its entries
type LedgerTransactionResponse struct {
	ID        uuid.UUID                 `json:"id"`
	Number    string                    `json:"number"`
	Type      inventory.TransactionType `json:"type"`
	ActorID   string                    `json:"actor_id"`
	RequestID *uuid.UUID                `json:"request_id,omitempty"`
	Reference string                    `json:"reference,omitempty"`
	Notes     string                    `json:"notes,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	Entries   []LedgerEntryResponse     `json:"entries"`
}

// ToLedgerEntryResponse converts a ledger entry
func ToLedgerEntryResponse(e *inventory.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:               e.ID,
		TransactionID:    e.TransactionID,
		EntryType:        e.EntryType,
		OwnerKind:        e.OwnerKind,
		OwnerID:          e.OwnerID,
		ItemID:           e.ItemID,
		BatchID:          e.BatchID,
		Quantity:         e.Quantity,
		UnitCost:         e.UnitCost,
		CounterpartyKind: e.CounterpartyKind,
		CounterpartyID:   e.CounterpartyID,
		RequestID:        e.RequestID,
		Reason:           e.Reason,
		Reference:        e.Reference,
		ActorID:          e.ActorID,
		CreatedAt:        e.CreatedAt,
	}
}

// ToLedgerTransactionResponse converts a ledger transaction
func ToLedgerTransactionResponse(t *inventory.LedgerTransaction) *LedgerTransactionResponse {
	entries := make([]LedgerEntryResponse, len(t.Entries))
	for i := range t.Entries {
		entries[i] = ToLedgerEntryResponse(&t.Entries[i])
	}
	return &LedgerTransactionResponse{
		ID:        t.ID,
		Number:    t.Number,
		Type:      t.Type,
		ActorID:   t.ActorID,
		RequestID: t.RequestID,
		Reference: t.Reference,
		Notes:     t.Notes,
		CreatedAt: t.CreatedAt,
		Entries:   entries,
	}
}

// OwnerStockResponse is an owner's total for one item
type OwnerStockResponse struct {
	OwnerKind inventory.OwnerKind `json:"owner_kind"`
	OwnerID   uuid.UUID           `json:"owner_id"`
	ItemID    uuid.UUID           `json:"item_id"`
	ItemCode  string              `json:"item_code"`
	ItemName  string              `json:"item_name"`
	Unit      string              `json:"unit"`
	Quantity  decimal.Decimal     `json:"quantity"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// BatchStockResponse is an owner's holding of one batch
type BatchStockResponse struct {
	BatchID           uuid.UUID       `json:"batch_id"`
	BatchNumber       string          `json:"batch_number"`
	ItemID            uuid.UUID       `json:"item_id"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	InitialQuantity   decimal.Decimal `json:"initial_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	ReceivedAt        time.Time       `json:"received_at"`
	Source            string          `json:"source"`
}

// StockDriftResponse reports an owner-item whose total disagrees with its batches
type StockDriftResponse struct {
	OwnerKind  inventory.OwnerKind `json:"owner_kind"`
	OwnerID    uuid.UUID           `json:"owner_id"`
	ItemID     uuid.UUID           `json:"item_id"`
	Recorded   decimal.Decimal     `json:"recorded"`
	BatchTotal decimal.Decimal     `json:"batch_total"`
	Difference decimal.Decimal     `json:"difference"`
}

// TransactionListFilter selects ledger entries for listing
type TransactionListFilter struct {
	OwnerKind *inventory.OwnerKind `form:"owner_kind"`
	OwnerID   *uuid.UUID           `form:"owner_id"`
	ItemID    *uuid.UUID           `form:"item_id"`
	EntryType *inventory.EntryType `form:"entry_type"`
	RequestID *uuid.UUID           `form:"request_id"`
	From      *time.Time           `form:"from"`
	To        *time.Time           `form:"to"`
	Page      int                  `form:"page"`
	PageSize  int                  `form:"page_size"`
}

// ReconciliationLine is one item of a contractor balance sheet
type ReconciliationLine struct {
	ItemID         uuid.UUID       `json:"item_id"`
	ItemCode       string          `json:"item_code"`
	ItemName       string          `json:"item_name"`
	Opening        decimal.Decimal `json:"opening"`
	Issued         decimal.Decimal `json:"issued"`
	Used           decimal.Decimal `json:"used"`
	Wasted         decimal.Decimal `json:"wasted"`
	Returned       decimal.Decimal `json:"returned"`
	Scrapped       decimal.Decimal `json:"scrapped"`
	Closing        decimal.Decimal `json:"closing"`
	WastagePercent decimal.Decimal `json:"wastage_percent"`
	IssuedCost     decimal.Decimal `json:"issued_cost"`
}

// Reconciliation is the balance sheet of a contractor against one store for one month
type Reconciliation struct {
	ContractorID uuid.UUID            `json:"contractor_id"`
	StoreID      uuid.UUID            `json:"store_id"`
	Month        string               `json:"month"`
	From         time.Time            `json:"from"`
	To           time.Time            `json:"to"`
	Lines        []ReconciliationLine `json:"lines"`
}

// CreateItemCommand registers a new item
type CreateItemCommand struct {
	Code              string          `json:"code" validate:"required,max=50"`
	Name              string          `json:"name" validate:"required,max=200"`
	Unit              string          `json:"unit" validate:"required,max=20"`
	CostPrice         decimal.Decimal `json:"cost_price" validate:"gte=0"`
	UnitPrice         decimal.Decimal `json:"unit_price" validate:"gte=0"`
	WastageAllowed    bool            `json:"wastage_allowed"`
	MaxWastagePercent decimal.Decimal `json:"max_wastage_percent" validate:"gte=0,lte=100"`
}

// UpdateItemCommand changes an item; nil fields are left untouched
type UpdateItemCommand struct {
	Name              *string          `json:"name" validate:"omitempty,max=200"`
	Unit              *string          `json:"unit" validate:"omitempty,max=20"`
	CostPrice         *decimal.Decimal `json:"cost_price"`
	UnitPrice         *decimal.Decimal `json:"unit_price"`
	WastageAllowed    *bool            `json:"wastage_allowed"`
	MaxWastagePercent *decimal.Decimal `json:"max_wastage_percent"`
}

// CreateStoreCommand registers a store
type CreateStoreCommand struct {
	Code string              `json:"code" validate:"required,max=50"`
	Name string              `json:"name" validate:"required,max=200"`
	Kind inventory.StoreKind `json:"kind" validate:"required,oneof=MAIN SUB"`
}

// CreateContractorCommand registers a contractor
type CreateContractorCommand struct {
	Code string `json:"code" validate:"required,max=50"`
	Name string `json:"name" validate:"required,max=200"`
}
