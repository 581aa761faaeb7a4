package requisition_test

import (
	"context"
	"strings"
	"testing"
	"time"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	apprequisition "github.com/fieldops/stockledger/internal/application/requisition"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/infrastructure/event"
	"github.com/fieldops/stockledger/internal/infrastructure/numbering"
	"github.com/fieldops/stockledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	requester  = shared.Actor{ID: "sub-keeper-1", Role: "SUB_STORE_KEEPER"}
	arm        = shared.Actor{ID: "arm-1", Role: string(requisition.RoleARM)}
	storesMgr  = shared.Actor{ID: "sm-1", Role: string(requisition.RoleStoresManager)}
	ospMgr     = shared.Actor{ID: "osp-1", Role: string(requisition.RoleOSPManager)}
	procurer   = shared.Actor{ID: "po-1", Role: string(requisition.RoleProcurementOfficer)}
	mainKeeper = shared.Actor{ID: "main-keeper-1", Role: string(requisition.RoleMainStoreKeeper)}
)

type requestFixture struct {
	db       *gorm.DB
	requests *apprequisition.StockRequestService
	ledger   *appinv.LedgerService
	catalog  *appinv.CatalogService
	query    *appinv.QueryService
	main     uuid.UUID
	sub      uuid.UUID
	cable    uuid.UUID
	ont      uuid.UUID
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := persistence.NewGormTransactionScope(db, event.NewOutboxPublisher(serializer))
	numbers, err := numbering.NewSnowflakeGenerator(2)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	ledger := appinv.NewLedgerService(scope, numbers, inventory.NewWastageChecker(0), log)
	f := &requestFixture{
		db:       db,
		requests: apprequisition.NewStockRequestService(scope, ledger, numbers, log),
		ledger:   ledger,
		catalog:  appinv.NewCatalogService(scope, log),
		query:    appinv.NewQueryService(scope),
	}

	ctx := context.Background()
	main, err := f.catalog.CreateStore(ctx, appinv.CreateStoreCommand{Code: "MAIN", Name: "Central store", Kind: inventory.StoreKindMain})
	require.NoError(t, err)
	sub, err := f.catalog.CreateStore(ctx, appinv.CreateStoreCommand{Code: "SUB-N", Name: "North depot", Kind: inventory.StoreKindSub})
	require.NoError(t, err)
	f.main, f.sub = main.ID, sub.ID

	for _, it := range []struct {
		code string
		dst  *uuid.UUID
	}{{"CABLE-2C", &f.cable}, {"ONT-HG8", &f.ont}} {
		item, err := f.catalog.CreateItem(ctx, appinv.CreateItemCommand{
			Code: it.code, Name: it.code, Unit: "pcs",
			CostPrice: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(12),
			WastageAllowed: true, MaxWastagePercent: decimal.NewFromInt(5),
		})
		require.NoError(t, err)
		*it.dst = item.ID
	}
	return f
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func (f *requestFixture) stock(t *testing.T, storeID, itemID uuid.UUID) decimal.Decimal {
	t.Helper()
	rows, err := f.query.GetStock(context.Background(), inventory.StoreOwner(storeID))
	require.NoError(t, err)
	for _, r := range rows {
		if r.ItemID == itemID {
			return r.Quantity
		}
	}
	return decimal.Zero
}

func (f *requestFixture) receiveAtMain(t *testing.T, itemID uuid.UUID, n int64) *appinv.LedgerTransactionResponse {
	t.Helper()
	txn, err := f.ledger.CreateGRN(context.Background(), appinv.CreateGRNCommand{
		StoreID: f.main, Source: "SLT", Actor: mainKeeper,
		Lines: []appinv.LineInput{{ItemID: itemID, Quantity: qty(n)}},
	})
	require.NoError(t, err)
	return txn
}

func (f *requestFixture) create(t *testing.T, origin uuid.UUID, source requisition.SourceType, lines ...apprequisition.LineInput) *apprequisition.StockRequestResponse {
	t.Helper()
	resp, err := f.requests.Create(context.Background(), apprequisition.CreateStockRequestCommand{
		OriginStoreID: origin,
		SourceType:    source,
		Lines:         lines,
		Note:          "north cluster rollout",
		Actor:         requester,
	})
	require.NoError(t, err)
	return resp
}

func (f *requestFixture) act(t *testing.T, id uuid.UUID, action requisition.Action) *apprequisition.StockRequestResponse {
	t.Helper()
	resp, err := f.requests.Act(context.Background(), id, action)
	require.NoError(t, err)
	return resp
}

// approveToFinal walks a SUB store request through all three approvals
func (f *requestFixture) approveToFinal(t *testing.T, id uuid.UUID, osp *requisition.OSPApprovalPayload) *apprequisition.StockRequestResponse {
	t.Helper()
	f.act(t, id, requisition.Action{Kind: requisition.ActionARMApprove, Actor: arm})
	f.act(t, id, requisition.Action{Kind: requisition.ActionStoresManagerApprove, Actor: storesMgr})
	return f.act(t, id, requisition.Action{Kind: requisition.ActionOSPManagerApprove, Actor: ospMgr, OSPApproval: osp})
}

func line(resp *apprequisition.StockRequestResponse, itemID uuid.UUID) apprequisition.StockRequestLineResponse {
	for _, l := range resp.Lines {
		if l.ItemID == itemID {
			return l
		}
	}
	return apprequisition.StockRequestLineResponse{}
}

func TestStockRequestService_InternalTransferLifecycle(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	grn := f.receiveAtMain(t, f.cable, 20)

	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(10)})
	assert.True(t, strings.HasPrefix(created.Number, apprequisition.RequestNumberPrefix+"-"))
	assert.Equal(t, requisition.StageARMApproval, created.Stage)
	assert.Equal(t, requisition.StatusPending, created.Status)
	require.NotNil(t, created.DestinationStoreID)
	assert.Equal(t, f.main, *created.DestinationStoreID)
	assert.Equal(t, []requisition.ActionKind{requisition.ActionARMApprove, requisition.ActionReject}, created.AllowedActions)

	approved := f.approveToFinal(t, created.ID, &requisition.OSPApprovalPayload{
		ApprovedQuantities: []requisition.LineQuantity{{ItemID: f.cable, Quantity: qty(8)}},
	})
	assert.Equal(t, requisition.StageMainStoreRelease, approved.Stage)
	assert.Equal(t, requisition.StatusApproved, approved.Status)
	assert.True(t, qty(8).Equal(line(approved, f.cable).ApprovedQuantity))

	released, err := f.requests.Release(ctx, created.ID, apprequisition.ReleaseCommand{Actor: mainKeeper})
	require.NoError(t, err)
	assert.Equal(t, requisition.StageSubStoreReceive, released.Stage)
	assert.True(t, strings.HasPrefix(released.TransactionNumber, "REL-"))
	assert.True(t, qty(8).Equal(line(released, f.cable).IssuedQuantity))
	assert.True(t, qty(12).Equal(f.stock(t, f.main, f.cable)))
	assert.True(t, f.stock(t, f.sub, f.cable).IsZero(), "released stock is in transit until received")

	received, err := f.requests.Receive(ctx, created.ID, apprequisition.ReceiveCommand{
		Lines: []requisition.LineQuantity{{ItemID: f.cable, Quantity: qty(8)}},
		Actor: requester,
	})
	require.NoError(t, err)
	assert.Equal(t, requisition.StageCompleted, received.Stage)
	assert.Equal(t, requisition.StatusCompleted, received.Status)
	assert.True(t, strings.HasPrefix(received.TransactionNumber, "RCV-"))
	assert.Empty(t, received.AllowedActions)
	assert.True(t, qty(8).Equal(f.stock(t, f.sub, f.cable)))

	batches, err := f.query.GetBatches(ctx, inventory.StoreOwner(f.sub), &f.cable)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, grn.Number+"-001", batches[0].BatchNumber)

	history, err := f.requests.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history.Approvals, 5)
	assert.Equal(t, requisition.ActionReceive, history.Approvals[4].Action)
	assert.Equal(t, requester.ID, history.Approvals[4].ActorID)

	requestID := created.ID
	entries, err := f.query.GetTransactions(ctx, appinv.TransactionListFilter{RequestID: &requestID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), entries.Total)
}

func TestStockRequestService_ReleaseShortfallLeavesRequestUntouched(t *testing.T) {
	f := newRequestFixture(t)
	f.receiveAtMain(t, f.cable, 3)
	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(5)})
	approved := f.approveToFinal(t, created.ID, nil)

	_, err := f.requests.Release(context.Background(), created.ID, apprequisition.ReleaseCommand{Actor: mainKeeper})

	assert.True(t, shared.HasCode(err, shared.CodeInsufficientStock), "got %v", err)
	after, err := f.requests.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StageMainStoreRelease, after.Stage)
	assert.Equal(t, approved.Version, after.Version)
	assert.True(t, line(after, f.cable).IssuedQuantity.IsZero())
	assert.True(t, qty(3).Equal(f.stock(t, f.main, f.cable)))
}

func TestStockRequestService_ReceiveMoreThanReleased(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	f.receiveAtMain(t, f.cable, 10)
	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(4)})
	f.approveToFinal(t, created.ID, nil)
	_, err := f.requests.Release(ctx, created.ID, apprequisition.ReleaseCommand{Actor: mainKeeper})
	require.NoError(t, err)

	_, err = f.requests.Receive(ctx, created.ID, apprequisition.ReceiveCommand{
		Lines: []requisition.LineQuantity{{ItemID: f.cable, Quantity: qty(5)}},
		Actor: requester,
	})

	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
	assert.True(t, f.stock(t, f.sub, f.cable).IsZero())
}

func TestStockRequestService_SubStoreCannotRequestExternalSupply(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	_, err := f.requests.Create(ctx, apprequisition.CreateStockRequestCommand{
		OriginStoreID: f.sub,
		SourceType:    requisition.SourceTypeSLT,
		Lines:         []apprequisition.LineInput{{ItemID: f.cable, Quantity: qty(1)}},
		Actor:         requester,
	})

	assert.ErrorIs(t, err, shared.ErrSubStoreCannotRequestExternalSupply)
	page, err := f.requests.List(ctx, apprequisition.ListStockRequestsQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	var outbox int64
	require.NoError(t, f.db.Model(&shared.OutboxEntry{}).Count(&outbox).Error)
	assert.Zero(t, outbox)
}

func TestStockRequestService_MainStoreStartsAtOSPApproval(t *testing.T) {
	f := newRequestFixture(t)

	created := f.create(t, f.main, requisition.SourceTypeSLT, apprequisition.LineInput{ItemID: f.ont, Quantity: qty(50)})
	assert.Equal(t, requisition.StageOSPManagerApproval, created.Stage)

	approved := f.act(t, created.ID, requisition.Action{Kind: requisition.ActionOSPManagerApprove, Actor: ospMgr})
	assert.Equal(t, requisition.StageGRNPending, approved.Stage)
	assert.Empty(t, approved.AllowedActions)
}

func TestStockRequestService_OutOfStageAction(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	created := f.create(t, f.sub, requisition.SourceTypeLocalPurchase, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(2)})

	_, err := f.requests.Act(ctx, created.ID, requisition.Action{Kind: requisition.ActionOSPManagerApprove, Actor: ospMgr})
	assert.True(t, shared.HasCode(err, shared.CodeInvalidWorkflowStage), "got %v", err)

	_, err = f.requests.Act(ctx, uuid.New(), requisition.Action{Kind: requisition.ActionARMApprove, Actor: arm})
	assert.True(t, shared.HasCode(err, shared.CodeInvalidWorkflowStage), "got %v", err)

	after, err := f.requests.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StageARMApproval, after.Stage)
	assert.Equal(t, created.Version, after.Version)
	assert.Empty(t, after.Approvals)
}

func TestStockRequestService_RejectAndResubmit(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(2)})
	f.act(t, created.ID, requisition.Action{Kind: requisition.ActionARMApprove, Actor: arm})

	_, err := f.requests.Act(ctx, created.ID, requisition.Action{Kind: requisition.ActionReject, Actor: storesMgr})
	assert.True(t, shared.HasCode(err, shared.CodeValidation), "a rejection needs a reason, got %v", err)

	rejected := f.act(t, created.ID, requisition.Action{
		Kind:   requisition.ActionReject,
		Actor:  storesMgr,
		Reject: &requisition.RejectPayload{Reason: "quantities not justified"},
	})
	assert.Equal(t, requisition.StageReturned, rejected.Stage)
	assert.Equal(t, requisition.StatusReturned, rejected.Status)
	assert.Equal(t, "quantities not justified", rejected.RejectionReason)
	assert.Equal(t, []requisition.ActionKind{requisition.ActionResubmit}, rejected.AllowedActions)

	resubmitted := f.act(t, created.ID, requisition.Action{Kind: requisition.ActionResubmit, Actor: requester})
	assert.Equal(t, requisition.StageARMApproval, resubmitted.Stage)
	assert.Equal(t, requisition.StatusPending, resubmitted.Status)
	assert.Empty(t, resubmitted.RejectionReason)
	require.Len(t, resubmitted.Approvals, 3)
	assert.Equal(t, "quantities not justified", resubmitted.Approvals[1].Comment)
}

func TestStockRequestService_LocalPurchaseCompletesOnLinkedGRN(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	created := f.create(t, f.sub, requisition.SourceTypeLocalPurchase,
		apprequisition.LineInput{ItemID: f.cable, Quantity: qty(10)},
		apprequisition.LineInput{ItemID: f.ont, Quantity: qty(2)},
	)
	assert.Nil(t, created.DestinationStoreID)

	approved := f.approveToFinal(t, created.ID, nil)
	assert.Equal(t, requisition.StageProcurement, approved.Stage)

	_, err := f.requests.Act(ctx, created.ID, requisition.Action{Kind: requisition.ActionProcurementComplete, Actor: procurer})
	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)

	procured := f.act(t, created.ID, requisition.Action{
		Kind:        requisition.ActionProcurementComplete,
		Actor:       procurer,
		Procurement: &requisition.ProcurementPayload{PurchaseOrderRef: "PO-2026-118"},
	})
	assert.Equal(t, requisition.StageGRNPending, procured.Stage)
	assert.Equal(t, "PO-2026-118", procured.PurchaseOrderRef)

	requestID := created.ID
	_, err = f.ledger.CreateGRN(ctx, appinv.CreateGRNCommand{
		StoreID: f.main, Source: "LOCAL_PURCHASE", Actor: requester, RequestID: &requestID,
		Lines: []appinv.LineInput{{ItemID: f.cable, Quantity: qty(10)}},
	})
	assert.True(t, shared.HasCode(err, shared.CodeValidation), "GRN must land at the origin store, got %v", err)

	_, err = f.ledger.CreateGRN(ctx, appinv.CreateGRNCommand{
		StoreID: f.sub, Source: "LOCAL_PURCHASE", Actor: requester, RequestID: &requestID,
		Lines: []appinv.LineInput{{ItemID: f.cable, Quantity: qty(10)}},
	})
	require.NoError(t, err)

	partial, err := f.requests.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StageGRNPending, partial.Stage)
	assert.Equal(t, requisition.StatusPartiallyCompleted, partial.Status)
	assert.True(t, qty(10).Equal(line(partial, f.cable).ReceivedQuantity))

	_, err = f.ledger.CreateGRN(ctx, appinv.CreateGRNCommand{
		StoreID: f.sub, Source: "LOCAL_PURCHASE", Actor: requester, RequestID: &requestID,
		Lines: []appinv.LineInput{{ItemID: f.ont, Quantity: qty(2)}},
	})
	require.NoError(t, err)

	done, err := f.requests.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StageCompleted, done.Stage)
	assert.Equal(t, requisition.StatusCompleted, done.Status)
	assert.True(t, qty(10).Equal(f.stock(t, f.sub, f.cable)))
	assert.True(t, qty(2).Equal(f.stock(t, f.sub, f.ont)))

	_, err = f.ledger.CreateGRN(ctx, appinv.CreateGRNCommand{
		StoreID: f.sub, Source: "LOCAL_PURCHASE", Actor: requester, RequestID: &requestID,
		Lines: []appinv.LineInput{{ItemID: f.ont, Quantity: qty(1)}},
	})
	assert.True(t, shared.HasCode(err, shared.CodeInvalidWorkflowStage), "got %v", err)
	assert.True(t, qty(2).Equal(f.stock(t, f.sub, f.ont)), "rejected GRN must not post stock")
}

func TestStockRequestService_CreateValidation(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  apprequisition.CreateStockRequestCommand
	}{
		{"no lines", apprequisition.CreateStockRequestCommand{
			OriginStoreID: f.sub, SourceType: requisition.SourceTypeMainStore, Actor: requester,
		}},
		{"unknown item", apprequisition.CreateStockRequestCommand{
			OriginStoreID: f.sub, SourceType: requisition.SourceTypeMainStore, Actor: requester,
			Lines: []apprequisition.LineInput{{ItemID: uuid.New(), Quantity: qty(1)}},
		}},
		{"unknown origin", apprequisition.CreateStockRequestCommand{
			OriginStoreID: uuid.New(), SourceType: requisition.SourceTypeMainStore, Actor: requester,
			Lines: []apprequisition.LineInput{{ItemID: f.cable, Quantity: qty(1)}},
		}},
		{"duplicate item", apprequisition.CreateStockRequestCommand{
			OriginStoreID: f.sub, SourceType: requisition.SourceTypeMainStore, Actor: requester,
			Lines: []apprequisition.LineInput{{ItemID: f.cable, Quantity: qty(1)}, {ItemID: f.cable, Quantity: qty(2)}},
		}},
		{"destination is not a main store", apprequisition.CreateStockRequestCommand{
			OriginStoreID: f.main, DestinationStoreID: &f.sub, SourceType: requisition.SourceTypeMainStore, Actor: requester,
			Lines: []apprequisition.LineInput{{ItemID: f.cable, Quantity: qty(1)}},
		}},
		{"missing actor", apprequisition.CreateStockRequestCommand{
			OriginStoreID: f.sub, SourceType: requisition.SourceTypeMainStore,
			Lines: []apprequisition.LineInput{{ItemID: f.cable, Quantity: qty(1)}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.requests.Create(ctx, tt.cmd)
			assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
		})
	}
}

func TestStockRequestService_List(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	first := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(1)})
	f.create(t, f.sub, requisition.SourceTypeLocalPurchase, apprequisition.LineInput{ItemID: f.ont, Quantity: qty(1)})
	f.act(t, first.ID, requisition.Action{Kind: requisition.ActionARMApprove, Actor: arm})

	stage := requisition.StageStoresManagerApproval
	page, err := f.requests.List(ctx, apprequisition.ListStockRequestsQuery{Stage: &stage})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, first.ID, page.Items[0].ID)

	all, err := f.requests.List(ctx, apprequisition.ListStockRequestsQuery{RequesterID: requester.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	bad := requisition.Stage("NOWHERE")
	_, err = f.requests.List(ctx, apprequisition.ListStockRequestsQuery{Stage: &bad})
	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)

	var outbox int64
	require.NoError(t, f.db.Model(&shared.OutboxEntry{}).Count(&outbox).Error)
	assert.Equal(t, int64(3), outbox, "two creations and one transition")
}

func TestStockRequestService_ReleasedStockIsConservedInTransit(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	grn := f.receiveAtMain(t, f.cable, 20)
	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(8)})
	f.approveToFinal(t, created.ID, nil)

	batchIDs := make([]uuid.UUID, 0, len(grn.Entries))
	for _, e := range grn.Entries {
		require.NotNil(t, e.BatchID)
		batchIDs = append(batchIDs, *e.BatchID)
	}
	batches, err := persistence.NewGormBatchRepository(f.db).FindByIDs(ctx, batchIDs)
	require.NoError(t, err)
	initial := decimal.Zero
	for _, b := range batches {
		initial = initial.Add(b.InitialQuantity)
	}

	remaining := func() decimal.Decimal {
		sum := decimal.Zero
		for _, store := range []uuid.UUID{f.main, f.sub} {
			rows, err := f.query.GetBatches(ctx, inventory.StoreOwner(store), &f.cable)
			require.NoError(t, err)
			for _, r := range rows {
				sum = sum.Add(r.RemainingQuantity)
			}
		}
		return sum
	}
	requestID := created.ID
	inTransit := func() decimal.Decimal {
		page, err := f.query.GetTransactions(ctx, appinv.TransactionListFilter{RequestID: &requestID, ItemID: &f.cable})
		require.NoError(t, err)
		sum := decimal.Zero
		for _, e := range page.Items {
			sum = sum.Add(e.Quantity)
		}
		return sum.Neg()
	}

	_, err = f.requests.Release(ctx, created.ID, apprequisition.ReleaseCommand{Actor: mainKeeper})
	require.NoError(t, err)

	assert.True(t, qty(12).Equal(remaining()), "got %s", remaining())
	assert.True(t, qty(8).Equal(inTransit()), "got %s", inTransit())
	assert.True(t, initial.Equal(remaining().Add(inTransit())), "released stock must stay accounted for until received")

	received, err := f.requests.Receive(ctx, created.ID, apprequisition.ReceiveCommand{
		Lines: []requisition.LineQuantity{{ItemID: f.cable, Quantity: qty(5)}},
		Actor: requester,
	})
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusPartiallyCompleted, received.Status)

	assert.True(t, qty(3).Equal(inTransit()), "got %s", inTransit())
	assert.True(t, qty(5).Equal(f.stock(t, f.sub, f.cable)))
	assert.True(t, initial.Equal(remaining().Add(inTransit())))
}

func TestStockRequestService_ReleaseWithinToleranceIssuesApprovedQuantity(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	f.receiveAtMain(t, f.cable, 20)
	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(8)})
	f.approveToFinal(t, created.ID, nil)

	released, err := f.requests.Release(ctx, created.ID, apprequisition.ReleaseCommand{
		Lines: []requisition.LineQuantity{{ItemID: f.cable, Quantity: decimal.RequireFromString("8.0009")}},
		Actor: mainKeeper,
	})
	require.NoError(t, err)

	assert.Equal(t, "8", line(released, f.cable).IssuedQuantity.String())
	assert.True(t, qty(12).Equal(f.stock(t, f.main, f.cable)), "got %s", f.stock(t, f.main, f.cable))

	requestID := created.ID
	out := inventory.EntryTypeTransferOut
	page, err := f.query.GetTransactions(ctx, appinv.TransactionListFilter{RequestID: &requestID, EntryType: &out})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, qty(-8).Equal(page.Items[0].Quantity), "got %s", page.Items[0].Quantity)
}

func TestStockRequestService_ActRejectsUnknownActionKinds(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	created := f.create(t, f.sub, requisition.SourceTypeMainStore, apprequisition.LineInput{ItemID: f.cable, Quantity: qty(2)})

	for _, kind := range []requisition.ActionKind{"FOO", requisition.ActionGoodsReceipt} {
		_, err := f.requests.Act(ctx, created.ID, requisition.Action{Kind: kind, Actor: arm})
		assert.True(t, shared.HasCode(err, shared.CodeValidation), "%s: got %v", kind, err)

		_, err = f.requests.Act(ctx, uuid.New(), requisition.Action{Kind: kind, Actor: arm})
		assert.True(t, shared.HasCode(err, shared.CodeValidation), "%s on a missing request: got %v", kind, err)
	}

	after, err := f.requests.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.StageARMApproval, after.Stage)
	assert.Equal(t, created.Version, after.Version)
}
