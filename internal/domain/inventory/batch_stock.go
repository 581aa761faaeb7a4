package inventory

import (
	"sort"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStock is the quantity of one batch currently held by one owner
type BatchStock struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerKind         OwnerKind       `gorm:"type:varchar(20);not null;uniqueIndex:uq_batch_stock_owner_batch,priority:1;index:idx_batch_stock_owner_item,priority:1"`
	OwnerID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_batch_stock_owner_batch,priority:2;index:idx_batch_stock_owner_item,priority:2"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_batch_stock_owner_batch,priority:3"`
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_stock_owner_item,priority:3"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BatchStock) TableName() string {
	return "batch_stocks"
}

// NewBatchStock creates an empty holding row for owner and batch
func NewBatchStock(owner Owner, batchID, itemID uuid.UUID) *BatchStock {
	return &BatchStock{
		ID:                uuid.New(),
		OwnerKind:         owner.Kind,
		OwnerID:           owner.ID,
		BatchID:           batchID,
		ItemID:            itemID,
		RemainingQuantity: decimal.Zero,
		UpdatedAt:         time.Now().UTC(),
	}
}

// Owner returns the holder of this row
func (s *BatchStock) Owner() Owner {
	return Owner{Kind: s.OwnerKind, ID: s.OwnerID}
}

// Credit adds quantity to the row
func (s *BatchStock) Credit(quantity decimal.Decimal) error {
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return shared.NewValidationError("credit quantity must be positive")
	}
	s.RemainingQuantity = valueobject.RoundQuantity(s.RemainingQuantity.Add(quantity))
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Debit removes quantity from the row; the remaining quantity never goes negative
func (s *BatchStock) Debit(quantity decimal.Decimal) error {
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return shared.NewValidationError("debit quantity must be positive")
	}
	if quantity.GreaterThan(s.RemainingQuantity) {
		return shared.NewInsufficientStockError(s.ItemID, quantity, s.RemainingQuantity).
			WithDetail("batch_id", s.BatchID.String())
	}
	s.RemainingQuantity = valueobject.RoundQuantity(s.RemainingQuantity.Sub(quantity))
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// OwnerStock is the per-owner item total kept in lock-step with BatchStock rows.
// Its row is also the target of the owner-item exclusive lock.
type OwnerStock struct {
	OwnerKind OwnerKind       `gorm:"type:varchar(20);primaryKey"`
	OwnerID   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ItemID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OwnerStock) TableName() string {
	return "owner_stocks"
}

// NewOwnerStock creates a zero total for owner and item
func NewOwnerStock(key OwnerItemKey) *OwnerStock {
	return &OwnerStock{
		OwnerKind: key.Owner.Kind,
		OwnerID:   key.Owner.ID,
		ItemID:    key.ItemID,
		Quantity:  decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
}

// Key returns the lock key of this row
func (s *OwnerStock) Key() OwnerItemKey {
	return OwnerItemKey{Owner: Owner{Kind: s.OwnerKind, ID: s.OwnerID}, ItemID: s.ItemID}
}

// Apply adds a signed delta to the total
func (s *OwnerStock) Apply(delta decimal.Decimal) error {
	next := valueobject.RoundQuantity(s.Quantity.Add(delta))
	if next.IsNegative() {
		return shared.NewInsufficientStockError(s.ItemID, delta.Neg(), s.Quantity)
	}
	s.Quantity = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// StockDrift is an owner-item whose recorded total disagrees with the sum of its batch rows
type StockDrift struct {
	Key        OwnerItemKey
	Recorded   decimal.Decimal
	BatchTotal decimal.Decimal
}

// Difference is recorded minus batch total
func (d StockDrift) Difference() decimal.Decimal {
	return d.Recorded.Sub(d.BatchTotal)
}

// DetectDrift compares owner totals against per-key batch sums. Keys present on
// only one side count as zero on the other. Differences within the quantity
// tolerance are ignored. Results follow the order of totals, then unmatched sums.
func DetectDrift(totals []OwnerStock, batchSums map[OwnerItemKey]decimal.Decimal) []StockDrift {
	var drifts []StockDrift
	seen := make(map[OwnerItemKey]bool, len(totals))
	for _, t := range totals {
		key := t.Key()
		seen[key] = true
		sum := batchSums[key]
		if !valueobject.Exceeds(t.Quantity.Sub(sum).Abs(), decimal.Zero) {
			continue
		}
		drifts = append(drifts, StockDrift{Key: key, Recorded: t.Quantity, BatchTotal: sum})
	}
	var extra []OwnerItemKey
	for key, sum := range batchSums {
		if seen[key] || !valueobject.Exceeds(sum.Abs(), decimal.Zero) {
			continue
		}
		extra = append(extra, key)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].String() < extra[j].String() })
	for _, key := range extra {
		drifts = append(drifts, StockDrift{Key: key, Recorded: decimal.Zero, BatchTotal: batchSums[key]})
	}
	return drifts
}
