package inventory

import (
	"fmt"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is an immutable priced lot. Its quantity is never changed after
// receipt; distribution across owners is tracked by BatchStock rows.
type Batch struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchNumber     string          `gorm:"type:varchar(80);not null;uniqueIndex"`
	InitialQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CostPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Source          string          `gorm:"type:varchar(100);not null"`
	GRNID           *uuid.UUID      `gorm:"column:grn_id;type:uuid;index"`
	CreatedAt       time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "batches"
}

// MaxReceiptLines bounds the lines of one receipt so BatchNumber sorts in line order
const MaxReceiptLines = 999

// BatchNumber names the batch created by line (1-based) of a receipt.
// Batches of one receipt share a timestamp, so the padded line index is what orders them.
func BatchNumber(receiptNumber string, line int) string {
	return fmt.Sprintf("%s-%03d", receiptNumber, line)
}

// NewBatch creates a batch stamped with the item's current prices
func NewBatch(item *Item, batchNumber string, quantity decimal.Decimal, source string, grnID *uuid.UUID, receivedAt time.Time) (*Batch, error) {
	if item == nil {
		return nil, shared.NewValidationError("batch item is required")
	}
	if batchNumber == "" {
		return nil, shared.NewValidationError("batch number is required")
	}
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return nil, shared.NewValidationError("batch quantity must be positive for item %s", item.Code)
	}
	return &Batch{
		ID:              uuid.New(),
		ItemID:          item.ID,
		BatchNumber:     batchNumber,
		InitialQuantity: quantity,
		CostPrice:       item.CostPrice,
		UnitPrice:       item.UnitPrice,
		Source:          source,
		GRNID:           grnID,
		CreatedAt:       receivedAt.UTC(),
	}, nil
}

// Candidate converts the batch and an owner's remaining quantity into an allocation candidate
func (b *Batch) Candidate(remaining decimal.Decimal) BatchCandidate {
	return BatchCandidate{
		BatchID:     b.ID,
		BatchNumber: b.BatchNumber,
		ReceivedAt:  b.CreatedAt,
		Remaining:   remaining,
		UnitCost:    b.CostPrice,
	}
}
