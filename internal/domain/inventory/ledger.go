package inventory

import (
	"strings"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger transaction header
type TransactionType string

const (
	TransactionTypeGRN      TransactionType = "GRN"
	TransactionTypeIssue    TransactionType = "ISSUE"
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypeReturn   TransactionType = "RETURN"
	TransactionTypeMRN      TransactionType = "MRN"
	TransactionTypeWastage  TransactionType = "WASTAGE"
	TransactionTypeUsage    TransactionType = "USAGE"
	TransactionTypeRelease  TransactionType = "RELEASE"
	TransactionTypeReceive  TransactionType = "RECEIVE"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeGRN, TransactionTypeIssue, TransactionTypeTransfer,
		TransactionTypeReturn, TransactionTypeMRN, TransactionTypeWastage,
		TransactionTypeUsage, TransactionTypeRelease, TransactionTypeReceive:
		return true
	}
	return false
}

// NumberPrefix returns the document number prefix for the type
func (t TransactionType) NumberPrefix() string {
	switch t {
	case TransactionTypeGRN:
		return "GRN"
	case TransactionTypeIssue:
		return "ISS"
	case TransactionTypeTransfer:
		return "TRF"
	case TransactionTypeReturn:
		return "RTN"
	case TransactionTypeMRN:
		return "MRN"
	case TransactionTypeWastage:
		return "WST"
	case TransactionTypeUsage:
		return "USG"
	case TransactionTypeRelease:
		return "REL"
	case TransactionTypeReceive:
		return "RCV"
	}
	return "TXN"
}

// EntryType classifies a single signed ledger line
type EntryType string

const (
	EntryTypeReceipt     EntryType = "RECEIPT"
	EntryTypeTransferOut EntryType = "TRANSFER_OUT"
	EntryTypeTransferIn  EntryType = "TRANSFER_IN"
	EntryTypeIssue       EntryType = "ISSUE"
	EntryTypeReturn      EntryType = "RETURN"
	EntryTypeWastage     EntryType = "WASTAGE"
	EntryTypeAdjustment  EntryType = "ADJUSTMENT"
	EntryTypeUsage       EntryType = "USAGE"
)

// ReasonScrap marks ADJUSTMENT entries that write off returned non-usable stock
const ReasonScrap = "SCRAP"

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeReceipt, EntryTypeTransferOut, EntryTypeTransferIn, EntryTypeIssue,
		EntryTypeReturn, EntryTypeWastage, EntryTypeAdjustment, EntryTypeUsage:
		return true
	}
	return false
}

// signOK reports whether a signed quantity is allowed for the entry type.
// RETURN and ADJUSTMENT go both ways.
func (t EntryType) signOK(q decimal.Decimal) bool {
	switch t {
	case EntryTypeReceipt, EntryTypeTransferIn:
		return q.IsPositive()
	case EntryTypeTransferOut, EntryTypeIssue, EntryTypeWastage, EntryTypeUsage:
		return q.IsNegative()
	}
	return !q.IsZero()
}

// LedgerTransaction groups the entries written by one mutation
type LedgerTransaction struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Type      TransactionType `gorm:"type:varchar(20);not null;index"`
	ActorID   string          `gorm:"type:varchar(100);not null"`
	RequestID *uuid.UUID      `gorm:"type:uuid;index"`
	Reference string          `gorm:"type:varchar(100)"`
	Notes     string          `gorm:"type:text"`
	CreatedAt time.Time       `gorm:"not null;index"`
	Entries   []LedgerEntry   `gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for GORM
func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

// NewLedgerTransaction creates an empty transaction header
func NewLedgerTransaction(txType TransactionType, number, actorID, reference string, requestID *uuid.UUID) (*LedgerTransaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewValidationError("invalid transaction type %q", txType)
	}
	if number == "" {
		return nil, shared.NewValidationError("transaction number is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	return &LedgerTransaction{
		ID:        uuid.New(),
		Number:    number,
		Type:      txType,
		ActorID:   actorID,
		RequestID: requestID,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EntryInput describes one entry to append to a transaction
type EntryInput struct {
	Type         EntryType
	Owner        Owner
	ItemID       uuid.UUID
	BatchID      *uuid.UUID
	Quantity     decimal.Decimal // signed
	UnitCost     decimal.Decimal
	Counterparty *Owner
	Reason       string
}

// AddEntry appends a validated entry; entries inherit actor, request and reference from the header
func (t *LedgerTransaction) AddEntry(in EntryInput) (*LedgerEntry, error) {
	if !in.Type.IsValid() {
		return nil, shared.NewValidationError("invalid entry type %q", in.Type)
	}
	if err := in.Owner.Validate(); err != nil {
		return nil, err
	}
	qty := valueobject.RoundQuantity(in.Quantity)
	if !in.Type.signOK(qty) {
		return nil, shared.NewValidationError("entry %s has invalid quantity sign %s", in.Type, qty.String())
	}
	entry := LedgerEntry{
		ID:            uuid.New(),
		TransactionID: t.ID,
		EntryType:     in.Type,
		OwnerKind:     in.Owner.Kind,
		OwnerID:       in.Owner.ID,
		ItemID:        in.ItemID,
		BatchID:       in.BatchID,
		Quantity:      qty,
		UnitCost:      in.UnitCost,
		RequestID:     t.RequestID,
		Reason:        in.Reason,
		Reference:     t.Reference,
		ActorID:       t.ActorID,
		Sequence:      len(t.Entries) + 1,
		CreatedAt:     t.CreatedAt,
	}
	if in.Counterparty != nil {
		entry.CounterpartyKind = in.Counterparty.Kind
		if in.Counterparty.ID != uuid.Nil {
			id := in.Counterparty.ID
			entry.CounterpartyID = &id
		}
	}
	t.Entries = append(t.Entries, entry)
	return &t.Entries[len(t.Entries)-1], nil
}

// LedgerEntry is an append-only signed quantity change for one owner, item and batch
type LedgerEntry struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	EntryType        EntryType       `gorm:"type:varchar(20);not null;index"`
	OwnerKind        OwnerKind       `gorm:"type:varchar(20);not null;index:idx_ledger_owner_item,priority:1"`
	OwnerID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_owner_item,priority:2"`
	ItemID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_owner_item,priority:3"`
	BatchID          *uuid.UUID      `gorm:"type:uuid;index"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CounterpartyKind OwnerKind       `gorm:"type:varchar(20)"`
	CounterpartyID   *uuid.UUID      `gorm:"type:uuid"`
	RequestID        *uuid.UUID      `gorm:"type:uuid;index"`
	Reason           string          `gorm:"type:varchar(255)"`
	Reference        string          `gorm:"type:varchar(100)"`
	ActorID          string          `gorm:"type:varchar(100);not null"`
	Sequence         int             `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Owner returns the owner this entry belongs to
func (e *LedgerEntry) Owner() Owner {
	return Owner{Kind: e.OwnerKind, ID: e.OwnerID}
}

// Counterparty returns the other side of the movement, if any
func (e *LedgerEntry) Counterparty() *Owner {
	if e.CounterpartyKind == "" {
		return nil
	}
	o := Owner{Kind: e.CounterpartyKind}
	if e.CounterpartyID != nil {
		o.ID = *e.CounterpartyID
	}
	return &o
}

// IsScrap reports whether the entry writes off returned stock
func (e *LedgerEntry) IsScrap() bool {
	return e.EntryType == EntryTypeAdjustment && e.Reason == ReasonScrap
}

// Value returns quantity times unit cost
func (e *LedgerEntry) Value() decimal.Decimal {
	return e.Quantity.Mul(e.UnitCost)
}
