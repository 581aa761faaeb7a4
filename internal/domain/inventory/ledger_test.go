package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerTransaction_AddEntry(t *testing.T) {
	requestID := uuid.New()
	txn, err := NewLedgerTransaction(TransactionTypeIssue, "ISS-1", "user-1", "JOB-42", &requestID)
	require.NoError(t, err)

	store := StoreOwner(uuid.New())
	contractor := ContractorOwner(uuid.New())
	itemID := uuid.New()
	batchID := uuid.New()

	out, err := txn.AddEntry(EntryInput{
		Type:         EntryTypeIssue,
		Owner:        store,
		ItemID:       itemID,
		BatchID:      &batchID,
		Quantity:     decimal.NewFromInt(-3),
		UnitCost:     decimal.NewFromInt(5),
		Counterparty: &contractor,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Sequence)
	assert.Equal(t, requestID, *out.RequestID)
	assert.Equal(t, "JOB-42", out.Reference)
	assert.Equal(t, "user-1", out.ActorID)
	assert.Equal(t, contractor, *out.Counterparty())
	assert.True(t, out.Value().Equal(decimal.NewFromInt(-15)))

	in, err := txn.AddEntry(EntryInput{
		Type:         EntryTypeTransferIn,
		Owner:        contractor,
		ItemID:       itemID,
		BatchID:      &batchID,
		Quantity:     decimal.NewFromInt(3),
		UnitCost:     decimal.NewFromInt(5),
		Counterparty: &store,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, in.Sequence)
	assert.Len(t, txn.Entries, 2)

	t.Run("sign is enforced per entry type", func(t *testing.T) {
		cases := []struct {
			entryType EntryType
			quantity  int64
		}{
			{EntryTypeReceipt, -1},
			{EntryTypeTransferIn, -1},
			{EntryTypeTransferOut, 1},
			{EntryTypeIssue, 1},
			{EntryTypeWastage, 1},
			{EntryTypeUsage, 1},
			{EntryTypeReturn, 0},
			{EntryTypeAdjustment, 0},
		}
		for _, tc := range cases {
			_, err := txn.AddEntry(EntryInput{Type: tc.entryType, Owner: store, ItemID: itemID, Quantity: decimal.NewFromInt(tc.quantity)})
			assert.True(t, errors.Is(err, shared.ErrValidation), string(tc.entryType))
		}
		assert.Len(t, txn.Entries, 2)
	})

	t.Run("supplier cannot own entries", func(t *testing.T) {
		_, err := txn.AddEntry(EntryInput{
			Type:     EntryTypeReturn,
			Owner:    Owner{Kind: OwnerKindSupplier, ID: uuid.New()},
			ItemID:   itemID,
			Quantity: decimal.NewFromInt(-1),
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("supplier counterparty without id", func(t *testing.T) {
		mrn, err := NewLedgerTransaction(TransactionTypeMRN, "MRN-1", "user-1", "", nil)
		require.NoError(t, err)
		e, err := mrn.AddEntry(EntryInput{
			Type:         EntryTypeReturn,
			Owner:        store,
			ItemID:       itemID,
			Quantity:     decimal.NewFromInt(-1),
			Counterparty: &Owner{Kind: OwnerKindSupplier},
		})
		require.NoError(t, err)
		assert.Nil(t, e.CounterpartyID)
		assert.Equal(t, OwnerKindSupplier, e.Counterparty().Kind)
	})
}

func TestNewLedgerTransaction_Validation(t *testing.T) {
	_, err := NewLedgerTransaction("BOGUS", "X-1", "u", "", nil)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = NewLedgerTransaction(TransactionTypeGRN, "", "u", "", nil)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = NewLedgerTransaction(TransactionTypeGRN, "GRN-1", "  ", "", nil)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestLedgerEntry_IsScrap(t *testing.T) {
	e := LedgerEntry{EntryType: EntryTypeAdjustment, Reason: ReasonScrap}
	assert.True(t, e.IsScrap())
	e.Reason = "count correction"
	assert.False(t, e.IsScrap())
}

func TestTransactionType_NumberPrefix(t *testing.T) {
	assert.Equal(t, "GRN", TransactionTypeGRN.NumberPrefix())
	assert.Equal(t, "ISS", TransactionTypeIssue.NumberPrefix())
	assert.Equal(t, "MRN", TransactionTypeMRN.NumberPrefix())
	assert.Equal(t, "WST", TransactionTypeWastage.NumberPrefix())
}

func TestInventoryChangedEvent_DedupesOwnersAndItems(t *testing.T) {
	txn, err := NewLedgerTransaction(TransactionTypeTransfer, "TRF-1", "u", "", nil)
	require.NoError(t, err)
	a := StoreOwner(uuid.New())
	b := StoreOwner(uuid.New())
	item := uuid.New()
	for i := 0; i < 2; i++ {
		_, err = txn.AddEntry(EntryInput{Type: EntryTypeTransferOut, Owner: a, ItemID: item, Quantity: decimal.NewFromInt(-1), Counterparty: &b})
		require.NoError(t, err)
		_, err = txn.AddEntry(EntryInput{Type: EntryTypeTransferIn, Owner: b, ItemID: item, Quantity: decimal.NewFromInt(1), Counterparty: &a})
		require.NoError(t, err)
	}
	evt := NewInventoryChangedEvent(txn)
	assert.Equal(t, []Owner{a, b}, evt.Owners)
	assert.Equal(t, []uuid.UUID{item}, evt.ItemIDs)
	assert.Equal(t, EventTypeInventoryChanged, evt.EventType())
	assert.WithinDuration(t, time.Now(), evt.OccurredAt(), time.Minute)
}
