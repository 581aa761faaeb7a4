package inventory

import (
	"context"
	"fmt"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// posting accumulates the effects of one ledger transaction inside a unit of work.
// Batch-stock rows are written as they change; owner totals and the ledger
// transaction are written by finish.
type posting struct {
	ctx       context.Context
	repos     TransactionalRepositories
	allocator *Allocator
	txn       *inventory.LedgerTransaction
	totals    LockedTotals
	events    []shared.DomainEvent
}

func (p *posting) pick(owner inventory.Owner, itemID uuid.UUID, quantity decimal.Decimal) (*inventory.AllocationResult, error) {
	return p.allocator.Pick(p.ctx, p.repos, owner, itemID, quantity)
}

func (p *posting) total(owner inventory.Owner, itemID uuid.UUID) (*inventory.OwnerStock, error) {
	return p.totals.Get(inventory.OwnerItemKey{Owner: owner, ItemID: itemID})
}

// debit removes quantity of one batch from owner
func (p *posting) debit(owner inventory.Owner, itemID, batchID uuid.UUID, quantity decimal.Decimal) error {
	total, err := p.total(owner, itemID)
	if err != nil {
		return err
	}
	row, err := p.repos.BatchStocks().FindOne(p.ctx, owner, batchID)
	if err != nil {
		return fmt.Errorf("load batch stock: %w", err)
	}
	if row == nil {
		return shared.NewInsufficientStockError(itemID, quantity, decimal.Zero).
			WithDetail("batch_id", batchID.String()).
			WithDetail("owner", owner.Key())
	}
	if err := row.Debit(quantity); err != nil {
		return err
	}
	if err := p.repos.BatchStocks().Save(p.ctx, row); err != nil {
		return fmt.Errorf("save batch stock: %w", err)
	}
	return total.Apply(quantity.Neg())
}

// credit adds quantity of one batch to owner, creating the holding row when needed
func (p *posting) credit(owner inventory.Owner, itemID, batchID uuid.UUID, quantity decimal.Decimal) error {
	total, err := p.total(owner, itemID)
	if err != nil {
		return err
	}
	row, err := p.repos.BatchStocks().FindOne(p.ctx, owner, batchID)
	if err != nil {
		return fmt.Errorf("load batch stock: %w", err)
	}
	if row == nil {
		row = inventory.NewBatchStock(owner, batchID, itemID)
	}
	if err := row.Credit(quantity); err != nil {
		return err
	}
	if err := p.repos.BatchStocks().Save(p.ctx, row); err != nil {
		return fmt.Errorf("save batch stock: %w", err)
	}
	return total.Apply(quantity)
}

// move transfers the deductions of an allocation from one owner to another and
// writes the paired entries
func (p *posting) move(alloc *inventory.AllocationResult, to inventory.Owner, outType, inType inventory.EntryType, outReason string) error {
	from := alloc.Owner
	for _, d := range alloc.Deductions {
		batchID := d.BatchID
		if err := p.debit(from, alloc.ItemID, batchID, d.Quantity); err != nil {
			return err
		}
		if err := p.credit(to, alloc.ItemID, batchID, d.Quantity); err != nil {
			return err
		}
		if err := p.entry(inventory.EntryInput{
			Type: outType, Owner: from, ItemID: alloc.ItemID, BatchID: &batchID,
			Quantity: d.Quantity.Neg(), UnitCost: d.UnitCost, Counterparty: &to, Reason: outReason,
		}); err != nil {
			return err
		}
		if err := p.entry(inventory.EntryInput{
			Type: inType, Owner: to, ItemID: alloc.ItemID, BatchID: &batchID,
			Quantity: d.Quantity, UnitCost: d.UnitCost, Counterparty: &from,
		}); err != nil {
			return err
		}
	}
	return nil
}

// remove debits the deductions of an allocation without crediting anyone
func (p *posting) remove(alloc *inventory.AllocationResult, entryType inventory.EntryType, counterparty *inventory.Owner, reason string) error {
	for _, d := range alloc.Deductions {
		batchID := d.BatchID
		if err := p.debit(alloc.Owner, alloc.ItemID, batchID, d.Quantity); err != nil {
			return err
		}
		if err := p.entry(inventory.EntryInput{
			Type: entryType, Owner: alloc.Owner, ItemID: alloc.ItemID, BatchID: &batchID,
			Quantity: d.Quantity.Neg(), UnitCost: d.UnitCost, Counterparty: counterparty, Reason: reason,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *posting) entry(in inventory.EntryInput) error {
	_, err := p.txn.AddEntry(in)
	return err
}

func (p *posting) emit(events ...shared.DomainEvent) {
	p.events = append(p.events, events...)
}

// finish persists owner totals, the ledger transaction and the outbox events
func (p *posting) finish() error {
	if len(p.txn.Entries) == 0 {
		return shared.NewValidationError("transaction %s has no movements", p.txn.Number)
	}
	for _, total := range p.totals {
		if err := p.repos.OwnerStocks().Save(p.ctx, total); err != nil {
			return fmt.Errorf("save owner stock: %w", err)
		}
	}
	if err := p.repos.Ledger().Create(p.ctx, p.txn); err != nil {
		return fmt.Errorf("create ledger transaction: %w", err)
	}
	events := append(p.events, inventory.NewInventoryChangedEvent(p.txn))
	if err := p.repos.Events().Record(p.ctx, events...); err != nil {
		return fmt.Errorf("record events: %w", err)
	}
	return nil
}
