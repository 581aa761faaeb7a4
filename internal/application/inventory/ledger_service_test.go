package inventory_test

import (
	"context"
	"testing"
	"time"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/domain/inventory"
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

type ledgerFixture struct {
	db         *gorm.DB
	ledger     *appinv.LedgerService
	catalog    *appinv.CatalogService
	query      *appinv.QueryService
	main       uuid.UUID
	sub        uuid.UUID
	contractor uuid.UUID
	keeper     shared.Actor
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
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

	numbers, err := numbering.NewSnowflakeGenerator(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	f := &ledgerFixture{
		db:      db,
		ledger:  appinv.NewLedgerService(scope, numbers, inventory.NewWastageChecker(0), log),
		catalog: appinv.NewCatalogService(scope, log),
		query:   appinv.NewQueryService(scope),
		keeper:  shared.Actor{ID: "keeper-1", Role: "MAIN_STORE_KEEPER"},
	}

	ctx := context.Background()
	main, err := f.catalog.CreateStore(ctx, appinv.CreateStoreCommand{Code: "MAIN", Name: "Central store", Kind: inventory.StoreKindMain})
	require.NoError(t, err)
	sub, err := f.catalog.CreateStore(ctx, appinv.CreateStoreCommand{Code: "SUB-N", Name: "North depot", Kind: inventory.StoreKindSub})
	require.NoError(t, err)
	crew, err := f.catalog.CreateContractor(ctx, appinv.CreateContractorCommand{Code: "CT-01", Name: "Fibre crew"})
	require.NoError(t, err)
	f.main, f.sub, f.contractor = main.ID, sub.ID, crew.ID
	return f
}

func (f *ledgerFixture) item(t *testing.T, code string, cost int64, wastageAllowed bool, maxPercent int64) uuid.UUID {
	t.Helper()
	item, err := f.catalog.CreateItem(context.Background(), appinv.CreateItemCommand{
		Code:              code,
		Name:              "Item " + code,
		Unit:              "pcs",
		CostPrice:         decimal.NewFromInt(cost),
		UnitPrice:         decimal.NewFromInt(cost * 2),
		WastageAllowed:    wastageAllowed,
		MaxWastagePercent: decimal.NewFromInt(maxPercent),
	})
	require.NoError(t, err)
	return item.ID
}

func (f *ledgerFixture) receive(t *testing.T, storeID, itemID uuid.UUID, qty int64) *appinv.LedgerTransactionResponse {
	t.Helper()
	txn, err := f.ledger.CreateGRN(context.Background(), appinv.CreateGRNCommand{
		StoreID: storeID,
		Source:  "SLT",
		Actor:   f.keeper,
		Lines:   []appinv.LineInput{{ItemID: itemID, Quantity: decimal.NewFromInt(qty)}},
	})
	require.NoError(t, err)
	return txn
}

func (f *ledgerFixture) stockOf(t *testing.T, owner inventory.Owner, itemID uuid.UUID) decimal.Decimal {
	t.Helper()
	rows, err := f.query.GetStock(context.Background(), owner)
	require.NoError(t, err)
	for _, r := range rows {
		if r.ItemID == itemID {
			return r.Quantity
		}
	}
	return decimal.Zero
}

func (f *ledgerFixture) batchTotal(t *testing.T, owner inventory.Owner, itemID uuid.UUID) decimal.Decimal {
	t.Helper()
	batches, err := f.query.GetBatches(context.Background(), owner, &itemID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, b := range batches {
		sum = sum.Add(b.RemainingQuantity)
	}
	return sum
}

func (f *ledgerFixture) ledgerTotal(t *testing.T, owner inventory.Owner, itemID uuid.UUID) decimal.Decimal {
	t.Helper()
	page, err := f.query.GetTransactions(context.Background(), appinv.TransactionListFilter{
		OwnerKind: &owner.Kind,
		OwnerID:   &owner.ID,
		ItemID:    &itemID,
		PageSize:  200,
	})
	require.NoError(t, err)
	sum := decimal.Zero
	for _, e := range page.Items {
		sum = sum.Add(e.Quantity)
	}
	return sum
}

func (f *ledgerFixture) itemEntries(t *testing.T, itemID uuid.UUID) []appinv.LedgerEntryResponse {
	t.Helper()
	page, err := f.query.GetTransactions(context.Background(), appinv.TransactionListFilter{ItemID: &itemID, PageSize: 200})
	require.NoError(t, err)
	require.Equal(t, int64(len(page.Items)), page.Total)
	return page.Items
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func assertQty(t *testing.T, expected int64, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, qty(expected).Equal(actual), append([]any{"expected %d, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func TestLedgerService_CreateGRN(t *testing.T) {
	f := newLedgerFixture(t)
	cable := f.item(t, "CABLE-2C", 10, true, 5)

	txn := f.receive(t, f.main, cable, 50)

	assert.Equal(t, inventory.TransactionTypeGRN, txn.Type)
	require.Len(t, txn.Entries, 1)
	assert.Equal(t, inventory.EntryTypeReceipt, txn.Entries[0].EntryType)
	assert.Equal(t, inventory.OwnerKindSupplier, txn.Entries[0].CounterpartyKind)
	assertQty(t, 50, txn.Entries[0].Quantity)

	batches, err := f.query.GetBatches(context.Background(), inventory.StoreOwner(f.main), &cable)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, txn.Number+"-001", batches[0].BatchNumber)
	assertQty(t, 10, batches[0].CostPrice)
	assertQty(t, 20, batches[0].UnitPrice)
	assert.Equal(t, "SLT", batches[0].Source)
	assertQty(t, 50, f.stockOf(t, inventory.StoreOwner(f.main), cable))
}

func TestLedgerService_CreateGRN_UnknownItem(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.CreateGRN(context.Background(), appinv.CreateGRNCommand{
		StoreID: f.main,
		Source:  "SLT",
		Actor:   f.keeper,
		Lines:   []appinv.LineInput{{ItemID: uuid.New(), Quantity: qty(1)}},
	})

	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
}

func TestLedgerService_IssueConsumesOldestBatchFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ont := f.item(t, "ONT", 40, true, 5)
	first := f.receive(t, f.main, ont, 5)
	second := f.receive(t, f.main, ont, 5)

	txn, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID:      f.main,
		ContractorID: f.contractor,
		Actor:        f.keeper,
		Lines:        []appinv.LineInput{{ItemID: ont, Quantity: qty(7)}},
	})
	require.NoError(t, err)

	require.Len(t, txn.Entries, 4)
	assert.Equal(t, inventory.EntryTypeIssue, txn.Entries[0].EntryType)
	assertQty(t, -5, txn.Entries[0].Quantity)
	assert.Equal(t, inventory.EntryTypeTransferIn, txn.Entries[1].EntryType)
	assertQty(t, 5, txn.Entries[1].Quantity)
	assertQty(t, -2, txn.Entries[2].Quantity)
	assertQty(t, 2, txn.Entries[3].Quantity)

	held, err := f.query.GetBatches(ctx, inventory.ContractorOwner(f.contractor), &ont)
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, first.Number+"-001", held[0].BatchNumber)
	assertQty(t, 5, held[0].RemainingQuantity)
	assert.Equal(t, second.Number+"-001", held[1].BatchNumber)
	assertQty(t, 2, held[1].RemainingQuantity)

	left, err := f.query.GetBatches(ctx, inventory.StoreOwner(f.main), &ont)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, second.Number+"-001", left[0].BatchNumber)
	assertQty(t, 3, left[0].RemainingQuantity)
}

func TestLedgerService_IssueShortfallChangesNothing(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 5)
	pole := f.item(t, "POLE", 300, false, 0)
	f.receive(t, f.main, cable, 20)
	f.receive(t, f.main, pole, 1)

	_, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID:      f.main,
		ContractorID: f.contractor,
		Actor:        f.keeper,
		Lines: []appinv.LineInput{
			{ItemID: cable, Quantity: qty(10)},
			{ItemID: pole, Quantity: qty(2)},
		},
	})

	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.CodeInsufficientStock), "got %v", err)
	assertQty(t, 20, f.stockOf(t, inventory.StoreOwner(f.main), cable))
	assertQty(t, 1, f.stockOf(t, inventory.StoreOwner(f.main), pole))
	assertQty(t, 0, f.stockOf(t, inventory.ContractorOwner(f.contractor), cable))

	issue := inventory.EntryTypeIssue
	page, err := f.query.GetTransactions(ctx, appinv.TransactionListFilter{EntryType: &issue})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestLedgerService_InactiveContractorCannotReceiveStock(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 5)
	f.receive(t, f.main, cable, 5)
	_, err := f.catalog.SetContractorActive(ctx, f.contractor, false)
	require.NoError(t, err)

	_, err = f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID:      f.main,
		ContractorID: f.contractor,
		Actor:        f.keeper,
		Lines:        []appinv.LineInput{{ItemID: cable, Quantity: qty(1)}},
	})

	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
}

func TestLedgerService_TransferKeepsBatchIdentity(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 5)
	grn := f.receive(t, f.main, cable, 10)

	txn, err := f.ledger.TransferBetweenStores(ctx, appinv.TransferCommand{
		FromStoreID: f.main,
		ToStoreID:   f.sub,
		Actor:       f.keeper,
		Lines:       []appinv.LineInput{{ItemID: cable, Quantity: qty(4)}},
	})
	require.NoError(t, err)
	assert.Equal(t, inventory.TransactionTypeTransfer, txn.Type)

	batches, err := f.query.GetBatches(ctx, inventory.StoreOwner(f.sub), &cable)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, grn.Number+"-001", batches[0].BatchNumber)
	assertQty(t, 4, batches[0].RemainingQuantity)
	assertQty(t, 6, f.stockOf(t, inventory.StoreOwner(f.main), cable))
}

func TestLedgerService_TransferToSameStoreIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	cable := f.item(t, "CABLE", 10, true, 5)
	f.receive(t, f.main, cable, 10)

	_, err := f.ledger.TransferBetweenStores(context.Background(), appinv.TransferCommand{
		FromStoreID: f.main,
		ToStoreID:   f.main,
		Actor:       f.keeper,
		Lines:       []appinv.LineInput{{ItemID: cable, Quantity: qty(1)}},
	})

	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
}

func TestLedgerService_ConservesStockAcrossOperations(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 10)
	grns := []*appinv.LedgerTransactionResponse{
		f.receive(t, f.main, cable, 30),
		f.receive(t, f.main, cable, 20),
	}
	store := inventory.StoreOwner(f.main)
	crew := inventory.ContractorOwner(f.contractor)

	_, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID: f.main, ContractorID: f.contractor, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(40)}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordUsage(ctx, appinv.UsageCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper, Reference: "SO-100",
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(25)}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordWastage(ctx, appinv.WastageCommand{
		OwnerKind: inventory.OwnerKindContractor, OwnerID: f.contractor, StoreID: &f.main,
		ItemID: cable, Quantity: qty(2), UsedQuantity: qty(25), Actor: f.keeper,
	})
	require.NoError(t, err)
	_, err = f.ledger.ReturnFromContractor(ctx, appinv.ReturnCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper,
		Lines: []appinv.ReturnLineInput{
			{ItemID: cable, Quantity: qty(6), Condition: appinv.ConditionGood},
			{ItemID: cable, Quantity: qty(3), Condition: appinv.ConditionDamaged},
		},
	})
	require.NoError(t, err)
	_, err = f.ledger.ReturnToSupplier(ctx, appinv.SupplierReturnCommand{
		StoreID: f.main, Supplier: "SLT", Actor: f.keeper, Reason: "wrong gauge",
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(5)}},
	})
	require.NoError(t, err)

	// 50 received; 40 issued, 25 used, 2 wasted, 6 back good, 3 scrapped, 5 to supplier
	assertQty(t, 11, f.stockOf(t, store, cable))
	assertQty(t, 4, f.stockOf(t, crew, cable))

	for _, owner := range []inventory.Owner{store, crew} {
		total := f.stockOf(t, owner, cable)
		assert.True(t, total.Equal(f.batchTotal(t, owner, cable)), "%s total must equal its batch holdings", owner)
		assert.True(t, total.Equal(f.ledgerTotal(t, owner, cable)), "%s total must equal the sum of its ledger entries", owner)
	}

	var batchIDs []uuid.UUID
	for _, grn := range grns {
		for _, e := range grn.Entries {
			require.NotNil(t, e.BatchID)
			batchIDs = append(batchIDs, *e.BatchID)
		}
	}
	batches, err := persistence.NewGormBatchRepository(f.db).FindByIDs(ctx, batchIDs)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	initial := decimal.Zero
	for _, b := range batches {
		initial = initial.Add(b.InitialQuantity)
	}

	var wasted, scrapped, used, toSupplier decimal.Decimal
	for _, e := range f.itemEntries(t, cable) {
		switch {
		case e.EntryType == inventory.EntryTypeWastage:
			wasted = wasted.Add(e.Quantity.Abs())
		case e.EntryType == inventory.EntryTypeAdjustment && e.Reason == inventory.ReasonScrap:
			scrapped = scrapped.Add(e.Quantity.Abs())
		case e.EntryType == inventory.EntryTypeUsage:
			used = used.Add(e.Quantity.Abs())
		case e.EntryType == inventory.EntryTypeReturn && e.CounterpartyKind == inventory.OwnerKindSupplier:
			toSupplier = toSupplier.Add(e.Quantity.Abs())
		}
	}
	assertQty(t, 2, wasted)
	assertQty(t, 3, scrapped)
	assertQty(t, 25, used)
	assertQty(t, 5, toSupplier)

	// nothing is in transit: no request releases were made
	remaining := f.batchTotal(t, store, cable).Add(f.batchTotal(t, crew, cable))
	accounted := remaining.Add(wasted).Add(scrapped).Add(used).Add(toSupplier)
	assertQty(t, 50, initial)
	assert.True(t, initial.Equal(accounted), "batch quantity %s must equal remaining plus removals %s", initial, accounted)
}

func TestLedgerService_IssueThenReturnRestoresBatches(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	ont := f.item(t, "ONT", 40, true, 5)
	f.receive(t, f.main, ont, 5)
	f.receive(t, f.main, ont, 5)
	store := inventory.StoreOwner(f.main)
	crew := inventory.ContractorOwner(f.contractor)

	before, err := f.query.GetBatches(ctx, store, &ont)
	require.NoError(t, err)
	require.Len(t, before, 2)

	_, err = f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID: f.main, ContractorID: f.contractor, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: ont, Quantity: qty(7)}},
	})
	require.NoError(t, err)
	_, err = f.ledger.ReturnFromContractor(ctx, appinv.ReturnCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper,
		Lines: []appinv.ReturnLineInput{{ItemID: ont, Quantity: qty(7), Condition: appinv.ConditionGood}},
	})
	require.NoError(t, err)

	after, err := f.query.GetBatches(ctx, store, &ont)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].BatchID, after[i].BatchID)
		assert.Equal(t, before[i].BatchNumber, after[i].BatchNumber)
		assert.True(t, before[i].RemainingQuantity.Equal(after[i].RemainingQuantity),
			"batch %s: %s before, %s after", before[i].BatchNumber, before[i].RemainingQuantity, after[i].RemainingQuantity)
	}
	assertQty(t, 10, f.stockOf(t, store, ont))
	assertQty(t, 0, f.stockOf(t, crew, ont))

	moved := decimal.Zero
	for _, e := range f.itemEntries(t, ont) {
		if e.EntryType != inventory.EntryTypeReceipt {
			moved = moved.Add(e.Quantity)
		}
	}
	assertQty(t, 0, moved, "issue and return entries must cancel out")
}

func TestLedgerService_CreateGRN_ManyLinesKeepLineOrder(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 5)

	lines := make([]appinv.LineInput, 11)
	for i := range lines {
		lines[i] = appinv.LineInput{ItemID: cable, Quantity: qty(1)}
	}
	txn, err := f.ledger.CreateGRN(ctx, appinv.CreateGRNCommand{StoreID: f.main, Source: "SLT", Actor: f.keeper, Lines: lines})
	require.NoError(t, err)

	batches, err := f.query.GetBatches(ctx, inventory.StoreOwner(f.main), &cable)
	require.NoError(t, err)
	require.Len(t, batches, 11)
	assert.Equal(t, txn.Number+"-001", batches[0].BatchNumber)
	assert.Equal(t, txn.Number+"-002", batches[1].BatchNumber)
	assert.Equal(t, txn.Number+"-010", batches[9].BatchNumber)
	assert.Equal(t, txn.Number+"-011", batches[10].BatchNumber)

	issued, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID: f.main, ContractorID: f.contractor, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(3)}},
	})
	require.NoError(t, err)
	held, err := f.query.GetBatches(ctx, inventory.ContractorOwner(f.contractor), &cable)
	require.NoError(t, err)
	require.Len(t, held, 3)
	assert.Equal(t, txn.Number+"-003", held[2].BatchNumber)
	assert.Len(t, issued.Entries, 6)
}

func TestLedgerService_ReturnMoreThanHeld(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 5)
	f.receive(t, f.main, cable, 10)
	_, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID: f.main, ContractorID: f.contractor, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(2)}},
	})
	require.NoError(t, err)

	_, err = f.ledger.ReturnFromContractor(ctx, appinv.ReturnCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper,
		Lines: []appinv.ReturnLineInput{{ItemID: cable, Quantity: qty(3), Condition: appinv.ConditionGood}},
	})

	assert.True(t, shared.HasCode(err, shared.CodeInsufficientStock), "got %v", err)
	assertQty(t, 8, f.stockOf(t, inventory.StoreOwner(f.main), cable))
}

func TestLedgerService_RecordWastage_Policy(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 5)
	pole := f.item(t, "POLE", 300, false, 0)
	f.receive(t, f.main, cable, 100)
	f.receive(t, f.main, pole, 3)
	store := inventory.StoreOwner(f.main)

	wastage := func(item uuid.UUID, quantity, used int64, reason string) error {
		_, err := f.ledger.RecordWastage(ctx, appinv.WastageCommand{
			OwnerKind: inventory.OwnerKindStore, OwnerID: f.main,
			ItemID: item, Quantity: qty(quantity), UsedQuantity: qty(used), Reason: reason, Actor: f.keeper,
		})
		return err
	}

	t.Run("within the allowed percentage", func(t *testing.T) {
		require.NoError(t, wastage(cable, 5, 100, ""))
		assertQty(t, 95, f.stockOf(t, store, cable))
	})

	t.Run("over the allowed percentage without a reason", func(t *testing.T) {
		err := wastage(cable, 6, 100, "")
		assert.True(t, shared.HasCode(err, shared.CodePolicyViolation), "got %v", err)
		assertQty(t, 95, f.stockOf(t, store, cable))
	})

	t.Run("over the allowed percentage with a reason", func(t *testing.T) {
		require.NoError(t, wastage(cable, 6, 100, "drum damaged in transit"))
		assertQty(t, 89, f.stockOf(t, store, cable))
	})

	t.Run("disallowed item without a reason", func(t *testing.T) {
		err := wastage(pole, 1, 0, "bent")
		assert.True(t, shared.HasCode(err, shared.CodePolicyViolation), "got %v", err)
		assertQty(t, 3, f.stockOf(t, store, pole))
	})

	t.Run("disallowed item with a reason", func(t *testing.T) {
		require.NoError(t, wastage(pole, 1, 0, "snapped during storm"))
		assertQty(t, 2, f.stockOf(t, store, pole))
	})

	t.Run("contractor wastage needs the issuing store", func(t *testing.T) {
		_, err := f.ledger.RecordWastage(ctx, appinv.WastageCommand{
			OwnerKind: inventory.OwnerKindContractor, OwnerID: f.contractor,
			ItemID: cable, Quantity: qty(1), UsedQuantity: qty(100), Actor: f.keeper,
		})
		assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
	})
}

func TestLedgerService_RecordUsageRequiresReference(t *testing.T) {
	f := newLedgerFixture(t)
	cable := f.item(t, "CABLE", 10, true, 5)

	_, err := f.ledger.RecordUsage(context.Background(), appinv.UsageCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(1)}},
	})

	assert.Error(t, err)
}

func TestQueryService_GetReconciliation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, true, 10)
	f.receive(t, f.main, cable, 20)

	_, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID: f.main, ContractorID: f.contractor, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(10)}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordUsage(ctx, appinv.UsageCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper, Reference: "SO-7",
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(6)}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordWastage(ctx, appinv.WastageCommand{
		OwnerKind: inventory.OwnerKindContractor, OwnerID: f.contractor, StoreID: &f.main,
		ItemID: cable, Quantity: qty(1), UsedQuantity: qty(6), Reason: "offcuts at splice", Actor: f.keeper,
	})
	require.NoError(t, err)
	_, err = f.ledger.ReturnFromContractor(ctx, appinv.ReturnCommand{
		ContractorID: f.contractor, StoreID: f.main, Actor: f.keeper,
		Lines: []appinv.ReturnLineInput{
			{ItemID: cable, Quantity: qty(2), Condition: appinv.ConditionGood},
			{ItemID: cable, Quantity: qty(1), Condition: appinv.ConditionLost},
		},
	})
	require.NoError(t, err)

	month := time.Now().UTC().Format("2006-01")
	rec, err := f.query.GetReconciliation(ctx, f.contractor, f.main, month)
	require.NoError(t, err)

	require.Len(t, rec.Lines, 1)
	line := rec.Lines[0]
	assert.Equal(t, "CABLE", line.ItemCode)
	assertQty(t, 0, line.Opening)
	assertQty(t, 10, line.Issued)
	assertQty(t, 6, line.Used)
	assertQty(t, 1, line.Wasted)
	assertQty(t, 2, line.Returned)
	assertQty(t, 1, line.Scrapped)
	assertQty(t, 0, line.Closing)
	assertQty(t, 100, line.IssuedCost)
	assert.True(t, decimal.RequireFromString("16.67").Equal(line.WastagePercent), "got %s", line.WastagePercent)

	next := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01")
	later, err := f.query.GetReconciliation(ctx, f.contractor, f.main, next)
	require.NoError(t, err)
	require.Len(t, later.Lines, 1)
	assertQty(t, 0, later.Lines[0].Opening)
	assertQty(t, 0, later.Lines[0].Issued)
}

func TestQueryService_GetReconciliation_BadMonth(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.query.GetReconciliation(context.Background(), f.contractor, f.main, "2026/03")

	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
}

func TestQueryService_AuditStock(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	cable := f.item(t, "CABLE", 10, false, 0)
	f.receive(t, f.main, cable, 12)
	_, err := f.ledger.IssueToContractor(ctx, appinv.IssueCommand{
		StoreID: f.main, ContractorID: f.contractor, Actor: f.keeper,
		Lines: []appinv.LineInput{{ItemID: cable, Quantity: qty(5)}},
	})
	require.NoError(t, err)

	drifts, err := f.query.AuditStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts, "postings keep totals and batches in step")

	require.NoError(t, f.db.Model(&inventory.OwnerStock{}).
		Where("owner_kind = ? AND owner_id = ? AND item_id = ?", inventory.OwnerKindStore, f.main, cable).
		Update("quantity", qty(9)).Error)

	drifts, err = f.query.AuditStock(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, inventory.OwnerKindStore, drifts[0].OwnerKind)
	assert.Equal(t, f.main, drifts[0].OwnerID)
	assertQty(t, 7, drifts[0].BatchTotal)
	assertQty(t, 2, drifts[0].Difference)
}

func TestQueryService_GetStock_UnknownOwner(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.query.GetStock(context.Background(), inventory.StoreOwner(uuid.New()))

	assert.True(t, shared.IsNotFound(err), "got %v", err)
}

func TestCatalogService_DeleteItem(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	received := f.item(t, "CABLE", 10, true, 5)
	unused := f.item(t, "SPARE", 1, false, 0)
	f.receive(t, f.main, received, 1)

	err := f.catalog.DeleteItem(ctx, received)
	assert.True(t, shared.HasCode(err, shared.CodeValidation), "got %v", err)
	_, err = f.catalog.GetItem(ctx, received)
	assert.NoError(t, err)

	require.NoError(t, f.catalog.DeleteItem(ctx, unused))
	_, err = f.catalog.GetItem(ctx, unused)
	assert.True(t, shared.IsNotFound(err))
}

func TestCatalogService_CreateItem_DuplicateCode(t *testing.T) {
	f := newLedgerFixture(t)
	f.item(t, "CABLE", 10, true, 5)

	_, err := f.catalog.CreateItem(context.Background(), appinv.CreateItemCommand{
		Code: "CABLE", Name: "Again", Unit: "m",
	})

	assert.True(t, shared.HasCode(err, shared.CodeAlreadyExists), "got %v", err)
}
