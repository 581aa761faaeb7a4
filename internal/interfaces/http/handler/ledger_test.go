package handler

import (
	"net/http"
	"testing"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerHandler_CreateGRN(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()

	txn := f.receive(ids.main, ids.cable, "25")

	assert.Equal(t, inventory.TransactionTypeGRN, txn.Type)
	assert.Equal(t, "keeper-1", txn.ActorID)
	assert.NotEmpty(t, txn.Number)
	require.Len(t, txn.Entries, 1)
	assert.Equal(t, inventory.EntryTypeReceipt, txn.Entries[0].EntryType)
	assert.True(t, decimal.NewFromInt(25).Equal(txn.Entries[0].Quantity))
}

func TestLedgerHandler_RequiresActor(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()

	w, resp := f.do(http.MethodPost, "/grns", map[string]any{
		"store_id": ids.main, "source": "SLT",
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "1"}},
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
}

func TestLedgerHandler_IssueShortfall(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()
	f.receive(ids.main, ids.cable, "5")

	w, resp := f.do(http.MethodPost, "/issues", map[string]any{
		"store_id": ids.main, "contractor_id": ids.contractor,
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "8"}},
	}, "keeper-1")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)
	assert.Equal(t, "3", resp.Error.Context["shortfall"])

	// nothing moved
	stock := decodeData[[]appinv.OwnerStockResponse](t, f.mustDo(http.StatusOK, http.MethodGet,
		"/owners/stores/"+ids.main.String()+"/stock", nil))
	require.Len(t, stock, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(stock[0].Quantity))
}

func TestLedgerHandler_IssueReturnAndUsage(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()
	f.receive(ids.main, ids.cable, "20")

	issue := decodeData[appinv.LedgerTransactionResponse](t, f.mustDo(http.StatusCreated, http.MethodPost, "/issues", map[string]any{
		"store_id": ids.main, "contractor_id": ids.contractor,
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "12"}},
	}))
	assert.Equal(t, inventory.TransactionTypeIssue, issue.Type)

	f.mustDo(http.StatusCreated, http.MethodPost, "/usages", map[string]any{
		"contractor_id": ids.contractor, "store_id": ids.main, "reference": "SO-1001",
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "6"}},
	})
	f.mustDo(http.StatusCreated, http.MethodPost, "/returns", map[string]any{
		"contractor_id": ids.contractor, "store_id": ids.main,
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "2", "condition": "GOOD"}},
	})

	held := decodeData[[]appinv.OwnerStockResponse](t, f.mustDo(http.StatusOK, http.MethodGet,
		"/owners/contractors/"+ids.contractor.String()+"/stock", nil))
	require.Len(t, held, 1)
	assert.True(t, decimal.NewFromInt(4).Equal(held[0].Quantity), "got %s", held[0].Quantity)

	store := decodeData[[]appinv.OwnerStockResponse](t, f.mustDo(http.StatusOK, http.MethodGet,
		"/owners/store/"+ids.main.String()+"/stock", nil))
	require.Len(t, store, 1)
	assert.True(t, decimal.NewFromInt(10).Equal(store[0].Quantity), "got %s", store[0].Quantity)
}

func TestLedgerHandler_IssueToInactiveContractor(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()
	f.receive(ids.main, ids.cable, "5")
	f.mustDo(http.StatusOK, http.MethodPost, "/contractors/"+ids.contractor.String()+"/deactivate", nil)

	w, resp := f.do(http.MethodPost, "/issues", map[string]any{
		"store_id": ids.main, "contractor_id": ids.contractor,
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "1"}},
	}, "keeper-1")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestLedgerHandler_TransferAndSupplierReturn(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()
	f.receive(ids.main, ids.cable, "10")

	f.mustDo(http.StatusCreated, http.MethodPost, "/transfers", map[string]any{
		"from_store_id": ids.main, "to_store_id": ids.sub,
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "4"}},
	})
	f.mustDo(http.StatusCreated, http.MethodPost, "/supplier-returns", map[string]any{
		"store_id": ids.main, "supplier": "SLT", "reason": "Damaged drum",
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "1"}},
	})

	sub := decodeData[[]appinv.OwnerStockResponse](t, f.mustDo(http.StatusOK, http.MethodGet,
		"/owners/stores/"+ids.sub.String()+"/stock", nil))
	require.Len(t, sub, 1)
	assert.True(t, decimal.NewFromInt(4).Equal(sub[0].Quantity))

	main := decodeData[[]appinv.OwnerStockResponse](t, f.mustDo(http.StatusOK, http.MethodGet,
		"/owners/stores/"+ids.main.String()+"/stock", nil))
	require.Len(t, main, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(main[0].Quantity))
}

func TestLedgerHandler_WastageReasonPolicy(t *testing.T) {
	f := newAPIFixture(t)
	ids := f.seedCatalog()
	f.receive(ids.main, ids.cable, "100")
	f.mustDo(http.StatusCreated, http.MethodPost, "/issues", map[string]any{
		"store_id": ids.main, "contractor_id": ids.contractor,
		"lines": []map[string]any{{"item_id": ids.cable, "quantity": "100"}},
	})

	wastage := map[string]any{
		"owner_kind": "CONTRACTOR", "owner_id": ids.contractor, "store_id": ids.main,
		"item_id": ids.cable, "quantity": "15", "used_quantity": "85",
	}
	w, resp := f.do(http.MethodPost, "/wastages", wastage, "keeper-1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodePolicyViolation, resp.Error.Code)

	wastage["reason"] = "Cable cut by road works"
	txn := decodeData[appinv.LedgerTransactionResponse](t, f.mustDo(http.StatusCreated, http.MethodPost, "/wastages", wastage))
	require.NotEmpty(t, txn.Entries)
	assert.Equal(t, inventory.EntryTypeWastage, txn.Entries[0].EntryType)
}
