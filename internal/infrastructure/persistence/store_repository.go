package persistence

import (
	"context"
	"errors"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStoreRepository implements StoreRepository using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindByID finds a store by its ID
func (r *GormStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Store, error) {
	var store inventory.Store
	if err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("store", id)
		}
		return nil, err
	}
	return &store, nil
}

// FindByKind returns every store of a kind ordered by code
func (r *GormStoreRepository) FindByKind(ctx context.Context, kind inventory.StoreKind) ([]inventory.Store, error) {
	var stores []inventory.Store
	if err := r.db.WithContext(ctx).Where("kind = ?", kind).Order("code ASC").Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// FindAll lists stores ordered by code
func (r *GormStoreRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Store, int64, error) {
	query := r.db.WithContext(ctx).Model(&inventory.Store{}).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stores []inventory.Store
	if err := paginate(query, filter).Order(sortClause(filter, StoreSortFields, "code ASC")).Find(&stores).Error; err != nil {
		return nil, 0, err
	}
	return stores, total, nil
}

// ExistsByCode checks whether a store code is taken
func (r *GormStoreRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&inventory.Store{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a store
func (r *GormStoreRepository) Save(ctx context.Context, store *inventory.Store) error {
	return r.db.WithContext(ctx).Save(store).Error
}

// GormContractorRepository implements ContractorRepository using GORM
type GormContractorRepository struct {
	db *gorm.DB
}

// NewGormContractorRepository creates a new GormContractorRepository
func NewGormContractorRepository(db *gorm.DB) *GormContractorRepository {
	return &GormContractorRepository{db: db}
}

// FindByID finds a contractor by its ID
func (r *GormContractorRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Contractor, error) {
	var contractor inventory.Contractor
	if err := r.db.WithContext(ctx).First(&contractor, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("contractor", id)
		}
		return nil, err
	}
	return &contractor, nil
}

// FindAll lists contractors ordered by code
func (r *GormContractorRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Contractor, int64, error) {
	query := r.db.WithContext(ctx).Model(&inventory.Contractor{}).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var contractors []inventory.Contractor
	if err := paginate(query, filter).Order(sortClause(filter, ContractorSortFields, "code ASC")).Find(&contractors).Error; err != nil {
		return nil, 0, err
	}
	return contractors, total, nil
}

// ExistsByCode checks whether a contractor code is taken
func (r *GormContractorRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&inventory.Contractor{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a contractor
func (r *GormContractorRepository) Save(ctx context.Context, contractor *inventory.Contractor) error {
	return r.db.WithContext(ctx).Save(contractor).Error
}

var (
	_ inventory.StoreRepository      = (*GormStoreRepository)(nil)
	_ inventory.ContractorRepository = (*GormContractorRepository)(nil)
)
