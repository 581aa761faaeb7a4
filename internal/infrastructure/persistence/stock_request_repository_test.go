package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSubStoreRequest(t *testing.T, db *gorm.DB) *requisition.StockRequest {
	t.Helper()
	origin, err := inventory.NewStore("SUB-01", "Field store", inventory.StoreKindSub)
	require.NoError(t, err)
	require.NoError(t, NewGormStoreRepository(db).Save(context.Background(), origin))

	request, err := requisition.NewStockRequest("SR-"+uuid.NewString()[:8], origin, nil, "user-1",
		requisition.SourceTypeLocalPurchase,
		[]requisition.LineQuantity{
			{ItemID: uuid.New(), Quantity: decimal.NewFromInt(4)},
			{ItemID: uuid.New(), Quantity: decimal.NewFromInt(2)},
		}, "")
	require.NoError(t, err)
	return request
}

func TestGormStockRequestRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormStockRequestRepository(db)
	ctx := context.Background()
	request := newSubStoreRequest(t, db)

	require.NoError(t, repo.Create(ctx, request))

	found, err := repo.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.Number, found.Number)
	assert.Equal(t, requisition.StageARMApproval, found.Stage)
	assert.Equal(t, requisition.StatusPending, found.Status)
	require.Len(t, found.Lines, 2)
	assert.Equal(t, 1, found.Lines[0].LineNo)
	assert.True(t, decimal.NewFromInt(4).Equal(found.Lines[0].RequestedQuantity))
}

func TestGormStockRequestRepository_FindByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormStockRequestRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())

	assert.True(t, shared.IsNotFound(err))
}

func TestGormStockRequestRepository_SaveWithLock(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormStockRequestRepository(db)
	ctx := context.Background()
	request := newSubStoreRequest(t, db)
	require.NoError(t, repo.Create(ctx, request))

	loaded, err := repo.FindByIDForUpdate(ctx, request.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Apply(requisition.Action{
		Kind:  requisition.ActionARMApprove,
		Actor: requisition.Actor{ID: "arm-1", Role: string(requisition.RoleARM)},
	}))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))

	saved, err := repo.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StageStoresManagerApproval, saved.Stage)
	assert.Equal(t, loaded.Version, saved.Version)
	require.Len(t, saved.Approvals, 1)
	assert.Equal(t, requisition.ActionARMApprove, saved.Approvals[0].Action)

	// a second writer still holding version 1 loses
	require.NoError(t, request.Apply(requisition.Action{
		Kind:   requisition.ActionReject,
		Actor:  requisition.Actor{ID: "arm-2", Role: string(requisition.RoleARM)},
		Reject: &requisition.RejectPayload{Reason: "duplicate"},
	}))
	err = repo.SaveWithLock(ctx, request)
	assert.True(t, shared.HasCode(err, shared.CodeConflict))
}

func TestGormStockRequestRepository_FindAll_Filters(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormStockRequestRepository(db)
	ctx := context.Background()

	first := newSubStoreRequest(t, db)
	require.NoError(t, repo.Create(ctx, first))

	central, err := inventory.NewStore("MAIN-01", "Central", inventory.StoreKindMain)
	require.NoError(t, err)
	require.NoError(t, NewGormStoreRepository(db).Save(ctx, central))
	second, err := requisition.NewStockRequest("SR-MAIN", central, nil, "user-2", requisition.SourceTypeSLT,
		[]requisition.LineQuantity{{ItemID: uuid.New(), Quantity: decimal.NewFromInt(1)}}, "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, second))

	stage := requisition.StageOSPManagerApproval
	requests, total, err := repo.FindAll(ctx, requisition.StockRequestFilter{Stage: &stage})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, requests, 1)
	assert.Equal(t, "SR-MAIN", requests[0].Number)
	assert.Len(t, requests[0].Lines, 1)

	requests, total, err = repo.FindAll(ctx, requisition.StockRequestFilter{RequesterID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, first.ID, requests[0].ID)

	_, total, err = repo.FindAll(ctx, requisition.StockRequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGormStockRequestRepository_FindByIDForUpdate_SQLShape(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	repo := NewGormStockRequestRepository(db.DB)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "stock_requests" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "workflow_stage", "status", "version", "created_at", "updated_at"}).
			AddRow(id.String(), "SR-1", "ARM_APPROVAL", "PENDING", 1, now, now))
	mock.ExpectQuery(`SELECT \* FROM "stock_request_lines" WHERE request_id = \$1 ORDER BY line_no ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "line_no"}))
	mock.ExpectQuery(`SELECT \* FROM "stock_request_approvals" WHERE request_id = \$1 ORDER BY created_at ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id"}))

	request, err := repo.FindByIDForUpdate(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "SR-1", request.Number)
	assert.Equal(t, requisition.StageARMApproval, request.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStockRequestRepository_SaveWithLock_VersionConflict(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	repo := NewGormStockRequestRepository(db.DB)
	request := &requisition.StockRequest{BaseAggregateRoot: shared.NewBaseAggregateRoot()}
	request.Version = 3

	mock.ExpectExec(`UPDATE "stock_requests" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveWithLock(context.Background(), request)

	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.CodeConflict))
	// line and history writes never happen after a lost version check
	assert.NoError(t, mock.ExpectationsWereMet())
}
