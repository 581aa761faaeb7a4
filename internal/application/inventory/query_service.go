package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// QueryService serves read-only stock and ledger views
type QueryService struct {
	scope TransactionScope
}

// NewQueryService creates a new QueryService
func NewQueryService(scope TransactionScope) *QueryService {
	return &QueryService{scope: scope}
}

// GetStock returns the owner's total per item, sorted by item code
func (s *QueryService) GetStock(ctx context.Context, owner inventory.Owner) ([]OwnerStockResponse, error) {
	var out []OwnerStockResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := ensureOwner(ctx, repos, owner); err != nil {
			return err
		}
		totals, err := repos.OwnerStocks().FindByOwner(ctx, owner)
		if err != nil {
			return fmt.Errorf("load owner stock: %w", err)
		}
		ids := make([]uuid.UUID, len(totals))
		for i, t := range totals {
			ids[i] = t.ItemID
		}
		items, err := repos.Items().FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}
		out = make([]OwnerStockResponse, 0, len(totals))
		for _, t := range totals {
			resp := OwnerStockResponse{
				OwnerKind: t.OwnerKind,
				OwnerID:   t.OwnerID,
				ItemID:    t.ItemID,
				Quantity:  t.Quantity,
				UpdatedAt: t.UpdatedAt,
			}
			if item, ok := items[t.ItemID]; ok {
				resp.ItemCode = item.Code
				resp.ItemName = item.Name
				resp.Unit = item.Unit
			}
			out = append(out, resp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ItemCode < out[j].ItemCode })
	return out, nil
}

// GetBatches returns the owner's non-empty batch holdings in FIFO order
func (s *QueryService) GetBatches(ctx context.Context, owner inventory.Owner, itemID *uuid.UUID) ([]BatchStockResponse, error) {
	var out []BatchStockResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := ensureOwner(ctx, repos, owner); err != nil {
			return err
		}
		holdings, err := repos.BatchStocks().FindByOwner(ctx, owner, itemID, false)
		if err != nil {
			return fmt.Errorf("load batch stock: %w", err)
		}
		out = make([]BatchStockResponse, len(holdings))
		for i, h := range holdings {
			out[i] = BatchStockResponse{
				BatchID:           h.Batch.ID,
				BatchNumber:       h.Batch.BatchNumber,
				ItemID:            h.Batch.ItemID,
				CostPrice:         h.Batch.CostPrice,
				UnitPrice:         h.Batch.UnitPrice,
				InitialQuantity:   h.Batch.InitialQuantity,
				RemainingQuantity: h.Stock.RemainingQuantity,
				ReceivedAt:        h.Batch.CreatedAt,
				Source:            h.Batch.Source,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransactions lists ledger entries newest first
func (s *QueryService) GetTransactions(ctx context.Context, filter TransactionListFilter) (*shared.Paginated[LedgerEntryResponse], error) {
	f := inventory.EntryFilter{
		Filter:    shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize(),
		ItemID:    filter.ItemID,
		EntryType: filter.EntryType,
		RequestID: filter.RequestID,
		From:      filter.From,
		To:        filter.To,
	}
	if filter.OwnerKind != nil || filter.OwnerID != nil {
		if filter.OwnerKind == nil || filter.OwnerID == nil {
			return nil, shared.NewValidationError("owner_kind and owner_id must be given together")
		}
		owner := inventory.Owner{Kind: *filter.OwnerKind, ID: *filter.OwnerID}
		if err := owner.Validate(); err != nil {
			return nil, err
		}
		f.Owner = &owner
	}
	if f.EntryType != nil && !f.EntryType.IsValid() {
		return nil, shared.NewValidationError("invalid entry type %q", *f.EntryType)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, shared.NewValidationError("from must be before to")
	}

	var page shared.Paginated[LedgerEntryResponse]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		entries, total, err := repos.Ledger().ListEntries(ctx, f)
		if err != nil {
			return fmt.Errorf("list ledger entries: %w", err)
		}
		items := make([]LedgerEntryResponse, len(entries))
		for i := range entries {
			items[i] = ToLedgerEntryResponse(&entries[i])
		}
		page = shared.NewPaginated(items, total, f.Page, f.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTransaction returns one posted transaction with its entries
func (s *QueryService) GetTransaction(ctx context.Context, id uuid.UUID) (*LedgerTransactionResponse, error) {
	var out *LedgerTransactionResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		txn, err := repos.Ledger().FindByID(ctx, id)
		if err != nil {
			return err
		}
		out = ToLedgerTransactionResponse(txn)
		return nil
	})
	return out, err
}

// ensureOwner fails with NOT_FOUND when the store or contractor is unknown
// AuditStock compares every owner total with the sum of its batch rows and
// returns the mismatches. An empty result means the ledger is consistent.
func (s *QueryService) AuditStock(ctx context.Context) ([]StockDriftResponse, error) {
	var out []StockDriftResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		drifts, err := repos.OwnerStocks().FindDrift(ctx)
		if err != nil {
			return fmt.Errorf("audit stock: %w", err)
		}
		out = make([]StockDriftResponse, len(drifts))
		for i, d := range drifts {
			out[i] = StockDriftResponse{
				OwnerKind:  d.Key.Owner.Kind,
				OwnerID:    d.Key.Owner.ID,
				ItemID:     d.Key.ItemID,
				Recorded:   d.Recorded,
				BatchTotal: d.BatchTotal,
				Difference: d.Difference(),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureOwner(ctx context.Context, repos TransactionalRepositories, owner inventory.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	var err error
	switch owner.Kind {
	case inventory.OwnerKindStore:
		_, err = repos.Stores().FindByID(ctx, owner.ID)
	case inventory.OwnerKindContractor:
		_, err = repos.Contractors().FindByID(ctx, owner.ID)
	}
	return err
}
