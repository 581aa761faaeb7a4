package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

var hundred = decimal.NewFromInt(100)

// ParseMonth returns the UTC bounds [from, to) of a "YYYY-MM" month
func ParseMonth(month string) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(monthLayout, month, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, shared.NewValidationError("month must be formatted YYYY-MM, got %q", month)
	}
	return from, from.AddDate(0, 1, 0), nil
}

// GetReconciliation builds the contractor's balance sheet against one store
// for a calendar month. Only entries whose counterparty is the store count.
func (s *QueryService) GetReconciliation(ctx context.Context, contractorID, storeID uuid.UUID, month string) (*Reconciliation, error) {
	from, to, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	contractor := inventory.ContractorOwner(contractorID)
	store := inventory.StoreOwner(storeID)

	result := &Reconciliation{
		ContractorID: contractorID,
		StoreID:      storeID,
		Month:        month,
		From:         from,
		To:           to,
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := ensureOwner(ctx, repos, contractor); err != nil {
			return err
		}
		if err := ensureOwner(ctx, repos, store); err != nil {
			return err
		}

		opening, err := repos.Ledger().SumByItem(ctx, inventory.EntryFilter{
			Owner: &contractor, Counterparty: &store, To: &from,
		})
		if err != nil {
			return fmt.Errorf("sum opening balances: %w", err)
		}
		entries, err := repos.Ledger().FindEntries(ctx, inventory.EntryFilter{
			Owner: &contractor, Counterparty: &store, From: &from, To: &to,
		})
		if err != nil {
			return fmt.Errorf("load month entries: %w", err)
		}

		lines := make(map[uuid.UUID]*ReconciliationLine)
		line := func(itemID uuid.UUID) *ReconciliationLine {
			l, ok := lines[itemID]
			if !ok {
				l = &ReconciliationLine{
					ItemID:     itemID,
					Opening:    decimal.Zero,
					Issued:     decimal.Zero,
					Used:       decimal.Zero,
					Wasted:     decimal.Zero,
					Returned:   decimal.Zero,
					Scrapped:   decimal.Zero,
					IssuedCost: decimal.Zero,
				}
				lines[itemID] = l
			}
			return l
		}
		for itemID, q := range opening {
			line(itemID).Opening = q
		}
		for i := range entries {
			e := &entries[i]
			l := line(e.ItemID)
			switch e.EntryType {
			case inventory.EntryTypeTransferIn:
				l.Issued = l.Issued.Add(e.Quantity)
				l.IssuedCost = l.IssuedCost.Add(e.Value())
			case inventory.EntryTypeUsage:
				l.Used = l.Used.Add(e.Quantity.Neg())
			case inventory.EntryTypeWastage:
				l.Wasted = l.Wasted.Add(e.Quantity.Neg())
			case inventory.EntryTypeTransferOut:
				l.Returned = l.Returned.Add(e.Quantity.Neg())
			case inventory.EntryTypeAdjustment:
				if e.IsScrap() {
					l.Scrapped = l.Scrapped.Add(e.Quantity.Neg())
				}
			}
		}

		ids := make([]uuid.UUID, 0, len(lines))
		for id := range lines {
			ids = append(ids, id)
		}
		items, err := repos.Items().FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}

		result.Lines = make([]ReconciliationLine, 0, len(lines))
		for id, l := range lines {
			if item, ok := items[id]; ok {
				l.ItemCode = item.Code
				l.ItemName = item.Name
			}
			l.Closing = valueobject.RoundQuantity(l.Opening.Add(l.Issued).Sub(l.Used).Sub(l.Wasted).Sub(l.Returned).Sub(l.Scrapped))
			l.WastagePercent = decimal.Zero
			if l.Used.IsPositive() {
				l.WastagePercent = l.Wasted.Div(l.Used).Mul(hundred).Round(2)
			}
			l.IssuedCost = l.IssuedCost.Round(2)
			result.Lines = append(result.Lines, *l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result.Lines, func(i, j int) bool {
		if result.Lines[i].ItemCode != result.Lines[j].ItemCode {
			return result.Lines[i].ItemCode < result.Lines[j].ItemCode
		}
		return result.Lines[i].ItemID.String() < result.Lines[j].ItemID.String()
	})
	return result, nil
}
