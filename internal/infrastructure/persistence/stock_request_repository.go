package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockRequestRepository implements StockRequestRepository using GORM
type GormStockRequestRepository struct {
	db *gorm.DB
}

// NewGormStockRequestRepository creates a new GormStockRequestRepository
func NewGormStockRequestRepository(db *gorm.DB) *GormStockRequestRepository {
	return &GormStockRequestRepository{db: db}
}

// FindByID loads a request with its lines and history
func (r *GormStockRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*requisition.StockRequest, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a request holding its row lock until the transaction ends
func (r *GormStockRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*requisition.StockRequest, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormStockRequestRepository) find(ctx context.Context, query *gorm.DB, id uuid.UUID) (*requisition.StockRequest, error) {
	var request requisition.StockRequest
	if err := query.First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("stock request", id)
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *GormStockRequestRepository) loadChildren(ctx context.Context, request *requisition.StockRequest) error {
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", request.ID).
		Order("line_no ASC").
		Find(&request.Lines).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("request_id = ?", request.ID).
		Order("created_at ASC").
		Find(&request.Approvals).Error
}

// FindAll lists requests newest first
func (r *GormStockRequestRepository) FindAll(ctx context.Context, filter requisition.StockRequestFilter) ([]requisition.StockRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&requisition.StockRequest{})
	if filter.Stage != nil {
		query = query.Where("workflow_stage = ?", *filter.Stage)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OriginStoreID != nil {
		query = query.Where("origin_store_id = ?", *filter.OriginStoreID)
	}
	if requester := strings.TrimSpace(filter.RequesterID); requester != "" {
		query = query.Where("requester_id = ?", requester)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []requisition.StockRequest
	if err := paginate(query, filter.Filter).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_no ASC")
		}).
		Order(sortClause(filter.Filter, StockRequestSortFields, "created_at DESC")).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// Create inserts a new request together with its lines
func (r *GormStockRequestRepository) Create(ctx context.Context, request *requisition.StockRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// SaveWithLock writes the header under an optimistic version check, then the
// line quantities, then any history rows not stored yet
func (r *GormStockRequestRepository) SaveWithLock(ctx context.Context, request *requisition.StockRequest) error {
	result := r.db.WithContext(ctx).
		Model(&requisition.StockRequest{}).
		Where("id = ? AND version = ?", request.ID, request.Version-1).
		Updates(map[string]any{
			"status":               request.Status,
			"workflow_stage":       request.Stage,
			"destination_store_id": request.DestinationStoreID,
			"purchase_order_ref":   request.PurchaseOrderRef,
			"rejection_reason":     request.RejectionReason,
			"version":              request.Version,
			"updated_at":           request.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("stock request", request.ID)
	}

	for i := range request.Lines {
		line := &request.Lines[i]
		if err := r.db.WithContext(ctx).
			Model(&requisition.StockRequestLine{}).
			Where("id = ?", line.ID).
			Updates(map[string]any{
				"approved_quantity": line.ApprovedQuantity,
				"issued_quantity":   line.IssuedQuantity,
				"received_quantity": line.ReceivedQuantity,
				"updated_at":        line.UpdatedAt,
			}).Error; err != nil {
			return err
		}
	}

	if len(request.Approvals) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&request.Approvals).Error
}

var _ requisition.StockRequestRepository = (*GormStockRequestRepository)(nil)
