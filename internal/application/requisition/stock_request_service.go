package requisition

import (
	"context"
	"fmt"

	appinventory "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/application/validation"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestNumberPrefix prefixes stock request numbers
const RequestNumberPrefix = "SR"

// StockRequestService drives stock requests through the approval workflow.
// Every transition loads the request under a row lock, applies the workflow
// table and saves with a version check in a single unit of work.
type StockRequestService struct {
	scope     appinventory.TransactionScope
	ledger    *appinventory.LedgerService
	numbers   appinventory.DocumentNumberGenerator
	validator *validation.Validator
	logger    *zap.Logger
}

// NewStockRequestService creates a new StockRequestService
func NewStockRequestService(
	scope appinventory.TransactionScope,
	ledger *appinventory.LedgerService,
	numbers appinventory.DocumentNumberGenerator,
	logger *zap.Logger,
) *StockRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockRequestService{
		scope:     scope,
		ledger:    ledger,
		numbers:   numbers,
		validator: validation.New(),
		logger:    logger,
	}
}

// Create raises a new stock request at the initial stage for its origin store
func (s *StockRequestService) Create(ctx context.Context, cmd CreateStockRequestCommand) (*StockRequestResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var request *requisition.StockRequest
	err := s.scope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		origin, err := repos.Stores().FindByID(ctx, cmd.OriginStoreID)
		if err != nil {
			if shared.IsNotFound(err) {
				return shared.NewValidationError("origin store %s does not exist", cmd.OriginStoreID)
			}
			return fmt.Errorf("load origin store: %w", err)
		}

		var destination *inventory.Store
		if cmd.SourceType == requisition.SourceTypeMainStore {
			destination, err = s.resolveDestination(ctx, repos, origin, cmd.DestinationStoreID)
			if err != nil {
				return err
			}
		}

		lines := make([]requisition.LineQuantity, len(cmd.Lines))
		ids := make([]uuid.UUID, len(cmd.Lines))
		for i, l := range cmd.Lines {
			lines[i] = requisition.LineQuantity{ItemID: l.ItemID, Quantity: l.Quantity}
			ids[i] = l.ItemID
		}
		items, err := repos.Items().FindByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load items: %w", err)
		}
		for _, id := range ids {
			if _, ok := items[id]; !ok {
				return shared.NewValidationError("item %s does not exist", id).WithDetail("item_id", id.String())
			}
		}

		request, err = requisition.NewStockRequest(s.numbers.Next(RequestNumberPrefix), origin, destination,
			cmd.Actor.ID, cmd.SourceType, lines, cmd.Note)
		if err != nil {
			return err
		}
		if err := repos.StockRequests().Create(ctx, request); err != nil {
			return fmt.Errorf("create stock request: %w", err)
		}
		return s.flushEvents(ctx, repos, request)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock request created",
		zap.String("number", request.Number),
		zap.String("stage", string(request.Stage)),
		zap.String("source_type", string(request.SourceType)),
	)
	return ToStockRequestResponse(request), nil
}

// resolveDestination returns the explicit destination, or the only MAIN store when none was given
func (s *StockRequestService) resolveDestination(ctx context.Context, repos appinventory.TransactionalRepositories, origin *inventory.Store, id *uuid.UUID) (*inventory.Store, error) {
	if id != nil {
		destination, err := repos.Stores().FindByID(ctx, *id)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.NewValidationError("destination store %s does not exist", *id)
			}
			return nil, fmt.Errorf("load destination store: %w", err)
		}
		return destination, nil
	}
	mains, err := repos.Stores().FindByKind(ctx, inventory.StoreKindMain)
	if err != nil {
		return nil, fmt.Errorf("load main stores: %w", err)
	}
	candidates := make([]inventory.Store, 0, len(mains))
	for _, m := range mains {
		if m.ID != origin.ID {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) != 1 {
		return nil, shared.NewValidationError("destination store is required: %d MAIN stores are available", len(candidates))
	}
	return &candidates[0], nil
}

// Act applies a workflow action. RELEASE and RECEIVE also post ledger movements.
func (s *StockRequestService) Act(ctx context.Context, id uuid.UUID, action requisition.Action) (*StockRequestResponse, error) {
	if !action.Kind.IsValid() {
		return nil, shared.NewValidationError("unknown workflow action %q", string(action.Kind)).
			WithDetail("action", string(action.Kind))
	}
	switch action.Kind {
	case requisition.ActionRelease:
		cmd := ReleaseCommand{Comment: action.Comment, Actor: action.Actor}
		if action.Release != nil {
			cmd.Lines = action.Release.Lines
		}
		return s.Release(ctx, id, cmd)
	case requisition.ActionReceive:
		cmd := ReceiveCommand{Comment: action.Comment, Actor: action.Actor}
		if action.Receive != nil {
			cmd.Lines = action.Receive.Lines
		}
		return s.Receive(ctx, id, cmd)
	}
	if err := s.validator.Struct(action); err != nil {
		return nil, err
	}

	var request *requisition.StockRequest
	err := s.scope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		var err error
		request, err = s.lock(ctx, repos, id, action.Kind)
		if err != nil {
			return err
		}
		if err := request.Apply(action); err != nil {
			return err
		}
		if err := repos.StockRequests().SaveWithLock(ctx, request); err != nil {
			return err
		}
		return s.flushEvents(ctx, repos, request)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock request transitioned",
		zap.String("number", request.Number),
		zap.String("action", string(action.Kind)),
		zap.String("stage", string(request.Stage)),
		zap.String("actor_id", action.Actor.ID),
	)
	return ToStockRequestResponse(request), nil
}

// Release issues stock from the destination MAIN store against an approved
// request. The issued quantity stays in transit until Receive.
func (s *StockRequestService) Release(ctx context.Context, id uuid.UUID, cmd ReleaseCommand) (*StockRequestResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var (
		request *requisition.StockRequest
		txn     *inventory.LedgerTransaction
	)
	err := s.scope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		var err error
		request, err = s.lock(ctx, repos, id, requisition.ActionRelease)
		if err != nil {
			return err
		}
		if err := request.CanApply(requisition.ActionRelease); err != nil {
			return err
		}
		lines := cmd.Lines
		if len(lines) == 0 {
			lines = request.ReleasableQuantities()
			if len(lines) == 0 {
				return shared.NewValidationError("request %s has nothing left to release", request.Number)
			}
		}
		lines = request.ClampRelease(lines)
		action := requisition.Action{
			Kind:    requisition.ActionRelease,
			Actor:   cmd.Actor,
			Comment: cmd.Comment,
			Release: &requisition.QuantitiesPayload{Lines: lines},
		}
		if err := request.Apply(action); err != nil {
			return err
		}
		txn, err = s.ledger.ReleaseForRequest(ctx, repos, request, lines, cmd.Actor)
		if err != nil {
			return err
		}
		if err := repos.StockRequests().SaveWithLock(ctx, request); err != nil {
			return err
		}
		return s.flushEvents(ctx, repos, request)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock request released",
		zap.String("number", request.Number),
		zap.String("transaction", txn.Number),
		zap.String("actor_id", cmd.Actor.ID),
	)
	resp := ToStockRequestResponse(request)
	resp.TransactionNumber = txn.Number
	return resp, nil
}

// Receive confirms arrival of released stock at the origin store and closes the request
func (s *StockRequestService) Receive(ctx context.Context, id uuid.UUID, cmd ReceiveCommand) (*StockRequestResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}

	var (
		request *requisition.StockRequest
		txn     *inventory.LedgerTransaction
	)
	err := s.scope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		var err error
		request, err = s.lock(ctx, repos, id, requisition.ActionReceive)
		if err != nil {
			return err
		}
		lines := request.ClampReceive(cmd.Lines)
		action := requisition.Action{
			Kind:    requisition.ActionReceive,
			Actor:   cmd.Actor,
			Comment: cmd.Comment,
			Receive: &requisition.QuantitiesPayload{Lines: lines},
		}
		if err := request.Apply(action); err != nil {
			return err
		}
		txn, err = s.ledger.ReceiveForRequest(ctx, repos, request, lines, cmd.Actor)
		if err != nil {
			return err
		}
		if err := repos.StockRequests().SaveWithLock(ctx, request); err != nil {
			return err
		}
		return s.flushEvents(ctx, repos, request)
	})
	if err != nil {
		return nil, err
	}

	resp := ToStockRequestResponse(request)
	fields := []zap.Field{
		zap.String("number", request.Number),
		zap.String("status", string(request.Status)),
		zap.String("actor_id", cmd.Actor.ID),
	}
	if txn != nil {
		resp.TransactionNumber = txn.Number
		fields = append(fields, zap.String("transaction", txn.Number))
	}
	s.logger.Info("stock request received", fields...)
	return resp, nil
}

// Get returns one request with its lines and history
func (s *StockRequestService) Get(ctx context.Context, id uuid.UUID) (*StockRequestResponse, error) {
	var resp *StockRequestResponse
	err := s.scope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		request, err := repos.StockRequests().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToStockRequestResponse(request)
		return nil
	})
	return resp, err
}

// List returns a page of requests, newest first
func (s *StockRequestService) List(ctx context.Context, query ListStockRequestsQuery) (*shared.Paginated[StockRequestResponse], error) {
	if query.Stage != nil && !query.Stage.IsValid() {
		return nil, shared.NewValidationError("invalid workflow stage %q", *query.Stage)
	}
	if query.Status != nil && !query.Status.IsValid() {
		return nil, shared.NewValidationError("invalid status %q", *query.Status)
	}
	filter := requisition.StockRequestFilter{
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
		}.Normalize(),
		Stage:         query.Stage,
		Status:        query.Status,
		OriginStoreID: query.OriginStoreID,
		RequesterID:   query.RequesterID,
	}

	var page shared.Paginated[StockRequestResponse]
	err := s.scope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		requests, total, err := repos.StockRequests().FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list stock requests: %w", err)
		}
		items := make([]StockRequestResponse, len(requests))
		for i := range requests {
			items[i] = *ToStockRequestResponse(&requests[i])
		}
		page = shared.NewPaginated(items, total, filter.Page, filter.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// lock loads the request under a row lock; a missing request is reported as an invalid stage
func (s *StockRequestService) lock(ctx context.Context, repos appinventory.TransactionalRepositories, id uuid.UUID, kind requisition.ActionKind) (*requisition.StockRequest, error) {
	request, err := repos.StockRequests().FindByIDForUpdate(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, requisition.NewRequestNotFoundError(id, kind)
		}
		return nil, fmt.Errorf("load stock request: %w", err)
	}
	return request, nil
}

func (s *StockRequestService) flushEvents(ctx context.Context, repos appinventory.TransactionalRepositories, request *requisition.StockRequest) error {
	events := request.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := repos.Events().Record(ctx, events...); err != nil {
		return fmt.Errorf("record events: %w", err)
	}
	request.ClearDomainEvents()
	return nil
}
