package persistence

import (
	"context"
	"errors"
	"sort"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// Create inserts a batch; batches are never updated
func (r *GormBatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// FindByIDs loads batches keyed by id
func (r *GormBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*inventory.Batch, error) {
	out := make(map[uuid.UUID]*inventory.Batch, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var batches []inventory.Batch
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&batches).Error; err != nil {
		return nil, err
	}
	for i := range batches {
		out[batches[i].ID] = &batches[i]
	}
	return out, nil
}

// CountByItem counts batches ever received for an item
func (r *GormBatchRepository) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&inventory.Batch{}).Where("item_id = ?", itemID).Count(&count).Error
	return count, err
}

// GormBatchStockRepository implements BatchStockRepository using GORM
type GormBatchStockRepository struct {
	db *gorm.DB
}

// NewGormBatchStockRepository creates a new GormBatchStockRepository
func NewGormBatchStockRepository(db *gorm.DB) *GormBatchStockRepository {
	return &GormBatchStockRepository{db: db}
}

// FindAvailable returns the owner's non-empty rows for an item, oldest batch first
func (r *GormBatchStockRepository) FindAvailable(ctx context.Context, owner inventory.Owner, itemID uuid.UUID) ([]inventory.BatchHolding, error) {
	var stocks []inventory.BatchStock
	if err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND item_id = ? AND remaining_quantity > 0", owner.Kind, owner.ID, itemID).
		Find(&stocks).Error; err != nil {
		return nil, err
	}
	return r.withBatches(ctx, stocks)
}

// FindByOwner lists an owner's holdings, oldest batch first
func (r *GormBatchStockRepository) FindByOwner(ctx context.Context, owner inventory.Owner, itemID *uuid.UUID, includeEmpty bool) ([]inventory.BatchHolding, error) {
	query := r.db.WithContext(ctx).Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID)
	if itemID != nil {
		query = query.Where("item_id = ?", *itemID)
	}
	if !includeEmpty {
		query = query.Where("remaining_quantity > 0")
	}

	var stocks []inventory.BatchStock
	if err := query.Find(&stocks).Error; err != nil {
		return nil, err
	}
	return r.withBatches(ctx, stocks)
}

// FindOne returns the row for owner and batch, or nil when the owner never held the batch
func (r *GormBatchStockRepository) FindOne(ctx context.Context, owner inventory.Owner, batchID uuid.UUID) (*inventory.BatchStock, error) {
	var stock inventory.BatchStock
	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND batch_id = ?", owner.Kind, owner.ID, batchID).
		First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

// Save creates or updates a holding row
func (r *GormBatchStockRepository) Save(ctx context.Context, stock *inventory.BatchStock) error {
	return r.db.WithContext(ctx).Save(stock).Error
}

func (r *GormBatchStockRepository) withBatches(ctx context.Context, stocks []inventory.BatchStock) ([]inventory.BatchHolding, error) {
	if len(stocks) == 0 {
		return []inventory.BatchHolding{}, nil
	}

	ids := make([]uuid.UUID, 0, len(stocks))
	for _, s := range stocks {
		ids = append(ids, s.BatchID)
	}
	batches, err := NewGormBatchRepository(r.db).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	holdings := make([]inventory.BatchHolding, 0, len(stocks))
	for _, s := range stocks {
		batch, ok := batches[s.BatchID]
		if !ok {
			continue
		}
		holdings = append(holdings, inventory.BatchHolding{Stock: s, Batch: *batch})
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		a, b := holdings[i].Batch, holdings[j].Batch
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.BatchNumber < b.BatchNumber
	})
	return holdings, nil
}

var (
	_ inventory.BatchRepository      = (*GormBatchRepository)(nil)
	_ inventory.BatchStockRepository = (*GormBatchStockRepository)(nil)
)
