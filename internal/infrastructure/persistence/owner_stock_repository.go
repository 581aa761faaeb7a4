package persistence

import (
	"context"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOwnerStockRepository implements OwnerStockRepository using GORM.
// Its rows double as the owner-item lock: every batch-stock mutation first
// takes SELECT ... FOR UPDATE on the matching row.
type GormOwnerStockRepository struct {
	db *gorm.DB
}

// NewGormOwnerStockRepository creates a new GormOwnerStockRepository
func NewGormOwnerStockRepository(db *gorm.DB) *GormOwnerStockRepository {
	return &GormOwnerStockRepository{db: db}
}

// LockForUpdate inserts the zero row if missing, then locks it until the transaction ends
func (r *GormOwnerStockRepository) LockForUpdate(ctx context.Context, key inventory.OwnerItemKey) (*inventory.OwnerStock, error) {
	seed := inventory.NewOwnerStock(key)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	var stock inventory.OwnerStock
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_kind = ? AND owner_id = ? AND item_id = ?", key.Owner.Kind, key.Owner.ID, key.ItemID).
		First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

// FindByOwner returns every item total of an owner, including zero rows
func (r *GormOwnerStockRepository) FindByOwner(ctx context.Context, owner inventory.Owner) ([]inventory.OwnerStock, error) {
	var stocks []inventory.OwnerStock
	if err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

// Save writes the total of a locked row
func (r *GormOwnerStockRepository) Save(ctx context.Context, stock *inventory.OwnerStock) error {
	return r.db.WithContext(ctx).
		Model(&inventory.OwnerStock{}).
		Where("owner_kind = ? AND owner_id = ? AND item_id = ?", stock.OwnerKind, stock.OwnerID, stock.ItemID).
		Updates(map[string]any{
			"quantity":   stock.Quantity,
			"updated_at": stock.UpdatedAt,
		}).Error
}

type batchSumRow struct {
	OwnerKind inventory.OwnerKind
	OwnerID   uuid.UUID
	ItemID    uuid.UUID
	Total     decimal.Decimal
}

// FindDrift loads every total and every per-key batch sum and compares them in memory
func (r *GormOwnerStockRepository) FindDrift(ctx context.Context) ([]inventory.StockDrift, error) {
	var totals []inventory.OwnerStock
	if err := r.db.WithContext(ctx).
		Order("owner_kind, owner_id, item_id").
		Find(&totals).Error; err != nil {
		return nil, err
	}

	var rows []batchSumRow
	if err := r.db.WithContext(ctx).
		Model(&inventory.BatchStock{}).
		Select("owner_kind, owner_id, item_id, SUM(remaining_quantity) AS total").
		Group("owner_kind, owner_id, item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	sums := make(map[inventory.OwnerItemKey]decimal.Decimal, len(rows))
	for _, row := range rows {
		key := inventory.OwnerItemKey{
			Owner:  inventory.Owner{Kind: row.OwnerKind, ID: row.OwnerID},
			ItemID: row.ItemID,
		}
		sums[key] = row.Total
	}
	return inventory.DetectDrift(totals, sums), nil
}

var _ inventory.OwnerStockRepository = (*GormOwnerStockRepository)(nil)
