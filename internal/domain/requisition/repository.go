package requisition

import (
	"context"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockRequestFilter narrows request listings
type StockRequestFilter struct {
	shared.Filter
	Stage         *Stage
	Status        *Status
	OriginStoreID *uuid.UUID
	RequesterID   string
}

// StockRequestRepository persists stock requests with their lines and history
type StockRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockRequest, error)
	// FindByIDForUpdate loads the request and holds a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*StockRequest, error)
	FindAll(ctx context.Context, filter StockRequestFilter) ([]StockRequest, int64, error)
	// Create inserts a new request with its lines
	Create(ctx context.Context, request *StockRequest) error
	// SaveWithLock persists a transitioned request, failing with a conflict
	// when the stored version is not the one the request was loaded at
	SaveWithLock(ctx context.Context, request *StockRequest) error
}
