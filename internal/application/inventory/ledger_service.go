package inventory

import (
	"context"
	"fmt"

	"github.com/fieldops/stockledger/internal/application/validation"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService runs every stock mutation: receipt, issuance, transfer,
// returns, wastage and usage. Each call is one all-or-nothing unit of work.
type LedgerService struct {
	scope     TransactionScope
	allocator *Allocator
	numbers   DocumentNumberGenerator
	wastage   inventory.WastageChecker
	validator *validation.Validator
	logger    *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	scope TransactionScope,
	numbers DocumentNumberGenerator,
	wastage inventory.WastageChecker,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		scope:     scope,
		allocator: NewAllocator(),
		numbers:   numbers,
		wastage:   wastage,
		validator: validation.New(),
		logger:    logger,
	}
}

// begin opens a ledger transaction after locking every key
func (s *LedgerService) begin(
	ctx context.Context,
	repos TransactionalRepositories,
	txType inventory.TransactionType,
	actor shared.Actor,
	reference string,
	requestID *uuid.UUID,
	keys []inventory.OwnerItemKey,
) (*posting, error) {
	txn, err := inventory.NewLedgerTransaction(txType, s.numbers.Next(txType.NumberPrefix()), actor.ID, reference, requestID)
	if err != nil {
		return nil, err
	}
	p := &posting{ctx: ctx, repos: repos, allocator: s.allocator, txn: txn}
	err = WithOwnerItemLock(ctx, repos, keys, func(totals LockedTotals) error {
		p.totals = totals
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateGRN records goods arriving into a store as new priced batches and,
// when linked, advances the originating stock request
func (s *LedgerService) CreateGRN(ctx context.Context, cmd CreateGRNCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		store, err := loadStore(ctx, repos, cmd.StoreID)
		if err != nil {
			return err
		}
		items, err := loadItems(ctx, repos, lineItemIDs(cmd.Lines))
		if err != nil {
			return err
		}

		var request *requisition.StockRequest
		if cmd.RequestID != nil {
			request, err = repos.StockRequests().FindByIDForUpdate(ctx, *cmd.RequestID)
			if err != nil {
				if shared.IsNotFound(err) {
					return requisition.NewRequestNotFoundError(*cmd.RequestID, requisition.ActionGoodsReceipt)
				}
				return fmt.Errorf("load stock request: %w", err)
			}
			if err := request.CanReceiveGoods(); err != nil {
				return err
			}
			if request.OriginStoreID != store.ID {
				return shared.NewValidationError("GRN store %s is not the origin store of request %s", store.Code, request.Number).
					WithDetail("request_id", request.ID.String())
			}
		}

		keys := make([]inventory.OwnerItemKey, 0, len(cmd.Lines))
		for _, l := range cmd.Lines {
			keys = append(keys, inventory.OwnerItemKey{Owner: store.Owner(), ItemID: l.ItemID})
		}
		p, err := s.begin(ctx, repos, inventory.TransactionTypeGRN, cmd.Actor, cmd.Reference, cmd.RequestID, keys)
		if err != nil {
			return err
		}
		p.txn.Notes = cmd.Notes

		supplier := inventory.Owner{Kind: inventory.OwnerKindSupplier}
		received := make([]inventory.ReceivedLine, 0, len(cmd.Lines))
		for i, l := range cmd.Lines {
			item := items[l.ItemID]
			batch, err := inventory.NewBatch(item, inventory.BatchNumber(p.txn.Number, i+1), l.Quantity, cmd.Source, &p.txn.ID, p.txn.CreatedAt)
			if err != nil {
				return err
			}
			if err := repos.Batches().Create(ctx, batch); err != nil {
				return fmt.Errorf("create batch: %w", err)
			}
			if err := p.credit(store.Owner(), item.ID, batch.ID, batch.InitialQuantity); err != nil {
				return err
			}
			if err := p.entry(inventory.EntryInput{
				Type: inventory.EntryTypeReceipt, Owner: store.Owner(), ItemID: item.ID, BatchID: &batch.ID,
				Quantity: batch.InitialQuantity, UnitCost: batch.CostPrice, Counterparty: &supplier, Reason: cmd.Source,
			}); err != nil {
				return err
			}
			received = append(received, inventory.ReceivedLine{
				ItemID: item.ID, BatchID: batch.ID, BatchNumber: batch.BatchNumber, Quantity: batch.InitialQuantity,
			})
		}

		receivedEvent := inventory.NewStockReceivedEvent(p.txn, store.ID, cmd.Source, received)
		if request != nil {
			lines := make([]requisition.LineQuantity, len(received))
			for i, r := range received {
				lines[i] = requisition.LineQuantity{ItemID: r.ItemID, Quantity: r.Quantity}
			}
			if err := request.RecordGoodsReceipt(cmd.Actor, p.txn.Number, lines); err != nil {
				return err
			}
			if err := repos.StockRequests().SaveWithLock(ctx, request); err != nil {
				return err
			}
			receivedEvent.RequesterID = request.RequesterID
			p.emit(request.GetDomainEvents()...)
			request.ClearDomainEvents()
		}
		p.emit(receivedEvent)

		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("goods received",
		zap.String("number", result.Number),
		zap.String("store_id", cmd.StoreID.String()),
		zap.Int("lines", len(cmd.Lines)),
	)
	return ToLedgerTransactionResponse(result), nil
}

// IssueToContractor moves stock from a store into a contractor's custody,
// keeping batch identity
func (s *LedgerService) IssueToContractor(ctx context.Context, cmd IssueCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		store, err := loadStore(ctx, repos, cmd.StoreID)
		if err != nil {
			return err
		}
		contractor, err := loadContractor(ctx, repos, cmd.ContractorID)
		if err != nil {
			return err
		}
		if !contractor.Active {
			return shared.NewValidationError("contractor %s is inactive", contractor.Code)
		}
		if _, err := loadItems(ctx, repos, lineItemIDs(cmd.Lines)); err != nil {
			return err
		}

		from, to := store.Owner(), contractor.Owner()
		p, err := s.begin(ctx, repos, inventory.TransactionTypeIssue, cmd.Actor, cmd.Reference, cmd.RequestID,
			pairKeys(from, to, lineItemIDs(cmd.Lines)))
		if err != nil {
			return err
		}
		for _, l := range cmd.Lines {
			alloc, err := p.pick(from, l.ItemID, l.Quantity)
			if err != nil {
				return err
			}
			if err := p.move(alloc, to, inventory.EntryTypeIssue, inventory.EntryTypeTransferIn, ""); err != nil {
				return err
			}
		}
		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock issued to contractor",
		zap.String("number", result.Number),
		zap.String("store_id", cmd.StoreID.String()),
		zap.String("contractor_id", cmd.ContractorID.String()),
	)
	return ToLedgerTransactionResponse(result), nil
}

// TransferBetweenStores moves stock directly from one store to another
func (s *LedgerService) TransferBetweenStores(ctx context.Context, cmd TransferCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	if cmd.FromStoreID == cmd.ToStoreID {
		return nil, shared.NewValidationError("source and destination stores must differ")
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		source, err := loadStore(ctx, repos, cmd.FromStoreID)
		if err != nil {
			return err
		}
		destination, err := loadStore(ctx, repos, cmd.ToStoreID)
		if err != nil {
			return err
		}
		if _, err := loadItems(ctx, repos, lineItemIDs(cmd.Lines)); err != nil {
			return err
		}

		from, to := source.Owner(), destination.Owner()
		p, err := s.begin(ctx, repos, inventory.TransactionTypeTransfer, cmd.Actor, cmd.Reference, nil,
			pairKeys(from, to, lineItemIDs(cmd.Lines)))
		if err != nil {
			return err
		}
		for _, l := range cmd.Lines {
			alloc, err := p.pick(from, l.ItemID, l.Quantity)
			if err != nil {
				return err
			}
			if err := p.move(alloc, to, inventory.EntryTypeTransferOut, inventory.EntryTypeTransferIn, ""); err != nil {
				return err
			}
		}
		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock transferred between stores",
		zap.String("number", result.Number),
		zap.String("from_store_id", cmd.FromStoreID.String()),
		zap.String("to_store_id", cmd.ToStoreID.String()),
	)
	return ToLedgerTransactionResponse(result), nil
}

// ReturnFromContractor takes stock back from a contractor. GOOD lines are
// credited to the store with their original batches; other lines are scrapped.
func (s *LedgerService) ReturnFromContractor(ctx context.Context, cmd ReturnCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		contractor, err := loadContractor(ctx, repos, cmd.ContractorID)
		if err != nil {
			return err
		}
		store, err := loadStore(ctx, repos, cmd.StoreID)
		if err != nil {
			return err
		}
		itemIDs := make([]uuid.UUID, len(cmd.Lines))
		for i, l := range cmd.Lines {
			itemIDs[i] = l.ItemID
		}
		if _, err := loadItems(ctx, repos, itemIDs); err != nil {
			return err
		}

		from, to := contractor.Owner(), store.Owner()
		p, err := s.begin(ctx, repos, inventory.TransactionTypeReturn, cmd.Actor, cmd.Reference, nil,
			pairKeys(from, to, itemIDs))
		if err != nil {
			return err
		}
		for _, l := range cmd.Lines {
			alloc, err := p.pick(from, l.ItemID, l.Quantity)
			if err != nil {
				return err
			}
			if l.Condition == ConditionGood {
				err = p.move(alloc, to, inventory.EntryTypeTransferOut, inventory.EntryTypeReturn, "")
			} else {
				err = p.remove(alloc, inventory.EntryTypeAdjustment, &to, inventory.ReasonScrap)
			}
			if err != nil {
				return err
			}
		}
		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock returned from contractor",
		zap.String("number", result.Number),
		zap.String("contractor_id", cmd.ContractorID.String()),
		zap.String("store_id", cmd.StoreID.String()),
	)
	return ToLedgerTransactionResponse(result), nil
}

// ReturnToSupplier removes stock from a store back to its supplier (MRN)
func (s *LedgerService) ReturnToSupplier(ctx context.Context, cmd SupplierReturnCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		store, err := loadStore(ctx, repos, cmd.StoreID)
		if err != nil {
			return err
		}
		if _, err := loadItems(ctx, repos, lineItemIDs(cmd.Lines)); err != nil {
			return err
		}

		owner := store.Owner()
		p, err := s.begin(ctx, repos, inventory.TransactionTypeMRN, cmd.Actor, cmd.Reference, nil,
			ownerKeys(owner, lineItemIDs(cmd.Lines)))
		if err != nil {
			return err
		}
		p.txn.Notes = cmd.Supplier
		supplier := inventory.Owner{Kind: inventory.OwnerKindSupplier}
		for _, l := range cmd.Lines {
			alloc, err := p.pick(owner, l.ItemID, l.Quantity)
			if err != nil {
				return err
			}
			if err := p.remove(alloc, inventory.EntryTypeReturn, &supplier, cmd.Reason); err != nil {
				return err
			}
		}
		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock returned to supplier",
		zap.String("number", result.Number),
		zap.String("store_id", cmd.StoreID.String()),
		zap.String("supplier", cmd.Supplier),
	)
	return ToLedgerTransactionResponse(result), nil
}

// RecordWastage writes off stock from a store or contractor after the item's
// wastage policy has been checked
func (s *LedgerService) RecordWastage(ctx context.Context, cmd WastageCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	owner := cmd.Owner()
	if owner.Kind == inventory.OwnerKindContractor && cmd.StoreID == nil {
		return nil, shared.NewValidationError("store_id is required for contractor wastage")
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		items, err := loadItems(ctx, repos, []uuid.UUID{cmd.ItemID})
		if err != nil {
			return err
		}
		if err := s.wastage.Check(items[cmd.ItemID], cmd.Quantity, cmd.UsedQuantity, cmd.Reason); err != nil {
			return err
		}

		var counterparty *inventory.Owner
		switch owner.Kind {
		case inventory.OwnerKindStore:
			if _, err := loadStore(ctx, repos, owner.ID); err != nil {
				return err
			}
		case inventory.OwnerKindContractor:
			if _, err := loadContractor(ctx, repos, owner.ID); err != nil {
				return err
			}
			store, err := loadStore(ctx, repos, *cmd.StoreID)
			if err != nil {
				return err
			}
			so := store.Owner()
			counterparty = &so
		}

		p, err := s.begin(ctx, repos, inventory.TransactionTypeWastage, cmd.Actor, cmd.Reference, nil,
			ownerKeys(owner, []uuid.UUID{cmd.ItemID}))
		if err != nil {
			return err
		}
		alloc, err := p.pick(owner, cmd.ItemID, cmd.Quantity)
		if err != nil {
			return err
		}
		if err := p.remove(alloc, inventory.EntryTypeWastage, counterparty, cmd.Reason); err != nil {
			return err
		}
		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wastage recorded",
		zap.String("number", result.Number),
		zap.String("owner", owner.Key()),
		zap.String("item_id", cmd.ItemID.String()),
		zap.String("quantity", cmd.Quantity.String()),
	)
	return ToLedgerTransactionResponse(result), nil
}

// RecordUsage records contractor consumption against a service order
func (s *LedgerService) RecordUsage(ctx context.Context, cmd UsageCommand) (*LedgerTransactionResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var result *inventory.LedgerTransaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		contractor, err := loadContractor(ctx, repos, cmd.ContractorID)
		if err != nil {
			return err
		}
		store, err := loadStore(ctx, repos, cmd.StoreID)
		if err != nil {
			return err
		}
		if _, err := loadItems(ctx, repos, lineItemIDs(cmd.Lines)); err != nil {
			return err
		}

		owner, storeOwner := contractor.Owner(), store.Owner()
		p, err := s.begin(ctx, repos, inventory.TransactionTypeUsage, cmd.Actor, cmd.Reference, nil,
			ownerKeys(owner, lineItemIDs(cmd.Lines)))
		if err != nil {
			return err
		}
		for _, l := range cmd.Lines {
			alloc, err := p.pick(owner, l.ItemID, l.Quantity)
			if err != nil {
				return err
			}
			if err := p.remove(alloc, inventory.EntryTypeUsage, &storeOwner, ""); err != nil {
				return err
			}
		}
		if err := p.finish(); err != nil {
			return err
		}
		result = p.txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("usage recorded",
		zap.String("number", result.Number),
		zap.String("contractor_id", cmd.ContractorID.String()),
		zap.String("reference", cmd.Reference),
	)
	return ToLedgerTransactionResponse(result), nil
}

// ReleaseForRequest debits the destination MAIN store for an approved internal
// transfer. The released quantity is in transit until ReceiveForRequest.
// It runs inside the caller's unit of work.
func (s *LedgerService) ReleaseForRequest(
	ctx context.Context,
	repos TransactionalRepositories,
	request *requisition.StockRequest,
	lines []requisition.LineQuantity,
	actor shared.Actor,
) (*inventory.LedgerTransaction, error) {
	if request.DestinationStoreID == nil {
		return nil, shared.NewValidationError("request %s has no destination store", request.Number)
	}
	itemIDs := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		itemIDs[i] = l.ItemID
	}
	source := inventory.StoreOwner(*request.DestinationStoreID)
	origin := inventory.StoreOwner(request.OriginStoreID)

	requestID := request.ID
	p, err := s.begin(ctx, repos, inventory.TransactionTypeRelease, actor, request.Number, &requestID, ownerKeys(source, itemIDs))
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		alloc, err := p.pick(source, l.ItemID, l.Quantity)
		if err != nil {
			return nil, err
		}
		if err := p.remove(alloc, inventory.EntryTypeTransferOut, &origin, ""); err != nil {
			return nil, err
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.txn, nil
}

// ReceiveForRequest credits the origin store with the batches released for the
// request, walking the release entries oldest first and skipping whatever was
// already received. It runs inside the caller's unit of work.
func (s *LedgerService) ReceiveForRequest(
	ctx context.Context,
	repos TransactionalRepositories,
	request *requisition.StockRequest,
	lines []requisition.LineQuantity,
	actor shared.Actor,
) (*inventory.LedgerTransaction, error) {
	if request.DestinationStoreID == nil {
		return nil, shared.NewValidationError("request %s has no destination store", request.Number)
	}
	source := inventory.StoreOwner(*request.DestinationStoreID)
	origin := inventory.StoreOwner(request.OriginStoreID)

	credits := make([]requisition.LineQuantity, 0, len(lines))
	itemIDs := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if l.Quantity.IsPositive() {
			credits = append(credits, l)
			itemIDs = append(itemIDs, l.ItemID)
		}
	}
	if len(credits) == 0 {
		return nil, nil
	}

	requestID := request.ID
	p, err := s.begin(ctx, repos, inventory.TransactionTypeReceive, actor, request.Number, &requestID, ownerKeys(origin, itemIDs))
	if err != nil {
		return nil, err
	}
	for _, l := range credits {
		if err := s.reattribute(p, request, source, origin, l.ItemID, l.Quantity); err != nil {
			return nil, err
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.txn, nil
}

func (s *LedgerService) reattribute(p *posting, request *requisition.StockRequest, source, origin inventory.Owner, itemID uuid.UUID, quantity decimal.Decimal) error {
	released, err := p.repos.Ledger().FindEntries(p.ctx, inventory.EntryFilter{
		Owner: &source, ItemID: &itemID, RequestID: &request.ID, EntryType: entryTypePtr(inventory.EntryTypeTransferOut),
	})
	if err != nil {
		return fmt.Errorf("load release entries: %w", err)
	}
	previous, err := p.repos.Ledger().FindEntries(p.ctx, inventory.EntryFilter{
		Owner: &origin, ItemID: &itemID, RequestID: &request.ID, EntryType: entryTypePtr(inventory.EntryTypeTransferIn),
	})
	if err != nil {
		return fmt.Errorf("load receipt entries: %w", err)
	}
	skip := decimal.Zero
	for _, e := range previous {
		skip = skip.Add(e.Quantity)
	}

	needed := quantity
	for _, e := range released {
		if !needed.IsPositive() {
			break
		}
		avail := e.Quantity.Neg()
		if skip.IsPositive() {
			consumed := decimal.Min(skip, avail)
			skip = skip.Sub(consumed)
			avail = avail.Sub(consumed)
		}
		if !avail.IsPositive() || e.BatchID == nil {
			continue
		}
		take := decimal.Min(avail, needed)
		batchID := *e.BatchID
		if err := p.credit(origin, itemID, batchID, take); err != nil {
			return err
		}
		if err := p.entry(inventory.EntryInput{
			Type: inventory.EntryTypeTransferIn, Owner: origin, ItemID: itemID, BatchID: &batchID,
			Quantity: take, UnitCost: e.UnitCost, Counterparty: &source,
		}); err != nil {
			return err
		}
		needed = needed.Sub(take)
	}
	if needed.IsPositive() {
		return shared.NewValidationError("received quantity for item %s exceeds what was released", itemID).
			WithDetail("item_id", itemID.String()).
			WithDetail("excess", needed.String())
	}
	return nil
}

func entryTypePtr(t inventory.EntryType) *inventory.EntryType {
	return &t
}

func lineItemIDs(lines []LineInput) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	return ids
}

func ownerKeys(owner inventory.Owner, itemIDs []uuid.UUID) []inventory.OwnerItemKey {
	keys := make([]inventory.OwnerItemKey, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = inventory.OwnerItemKey{Owner: owner, ItemID: id}
	}
	return keys
}

func pairKeys(from, to inventory.Owner, itemIDs []uuid.UUID) []inventory.OwnerItemKey {
	return append(ownerKeys(from, itemIDs), ownerKeys(to, itemIDs)...)
}

func loadStore(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*inventory.Store, error) {
	store, err := repos.Stores().FindByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewValidationError("store %s does not exist", id).WithDetail("store_id", id.String())
		}
		return nil, fmt.Errorf("load store: %w", err)
	}
	return store, nil
}

func loadContractor(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*inventory.Contractor, error) {
	contractor, err := repos.Contractors().FindByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewValidationError("contractor %s does not exist", id).WithDetail("contractor_id", id.String())
		}
		return nil, fmt.Errorf("load contractor: %w", err)
	}
	return contractor, nil
}

// loadItems fails with a ValidationError naming the first unknown item
func loadItems(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) (map[uuid.UUID]*inventory.Item, error) {
	items, err := repos.Items().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, shared.NewValidationError("item %s does not exist", id).WithDetail("item_id", id.String())
		}
	}
	return items, nil
}
