package persistence

import (
	"context"
	"errors"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerRepository implements LedgerRepository using GORM.
// Ledger rows are insert-only; nothing here updates or deletes them.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Create inserts the transaction header and its entries
func (r *GormLedgerRepository) Create(ctx context.Context, txn *inventory.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindByID loads a transaction with its entries in posting order
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.LedgerTransaction, error) {
	var txn inventory.LedgerTransaction
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		First(&txn, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("transaction", id)
		}
		return nil, err
	}
	return &txn, nil
}

// ListEntries returns one page of matching entries, newest first
func (r *GormLedgerRepository) ListEntries(ctx context.Context, filter inventory.EntryFilter) ([]inventory.LedgerEntry, int64, error) {
	query := applyEntryFilter(r.db.WithContext(ctx).Model(&inventory.LedgerEntry{}), filter).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []inventory.LedgerEntry
	if err := paginate(query, filter.Filter).
		Order("created_at DESC").
		Order("sequence DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindEntries returns every matching entry, oldest first
func (r *GormLedgerRepository) FindEntries(ctx context.Context, filter inventory.EntryFilter) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	if err := applyEntryFilter(r.db.WithContext(ctx).Model(&inventory.LedgerEntry{}), filter).
		Order("created_at ASC").
		Order("transaction_id ASC").
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

type itemSum struct {
	ItemID uuid.UUID
	Total  decimal.Decimal
}

// SumByItem totals signed quantities per item; paging is ignored
func (r *GormLedgerRepository) SumByItem(ctx context.Context, filter inventory.EntryFilter) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []itemSum
	if err := applyEntryFilter(r.db.WithContext(ctx).Model(&inventory.LedgerEntry{}), filter).
		Select("item_id, SUM(quantity) AS total").
		Group("item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.ItemID] = valueobject.RoundQuantity(row.Total)
	}
	return out, nil
}

func applyEntryFilter(query *gorm.DB, filter inventory.EntryFilter) *gorm.DB {
	if filter.Owner != nil {
		query = query.Where("owner_kind = ? AND owner_id = ?", filter.Owner.Kind, filter.Owner.ID)
	}
	if filter.Counterparty != nil {
		query = query.Where("counterparty_kind = ?", filter.Counterparty.Kind)
		if filter.Counterparty.ID != uuid.Nil {
			query = query.Where("counterparty_id = ?", filter.Counterparty.ID)
		}
	}
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.EntryType != nil {
		query = query.Where("entry_type = ?", *filter.EntryType)
	}
	if filter.RequestID != nil {
		query = query.Where("request_id = ?", *filter.RequestID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}
	return query
}

var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)
