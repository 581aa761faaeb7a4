package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/stockledger/internal/application/validation"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ItemResponse is the API view of an item
type ItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	WastageAllowed    bool            `json:"wastage_allowed"`
	MaxWastagePercent decimal.Decimal `json:"max_wastage_percent"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToItemResponse converts an item
func ToItemResponse(i *inventory.Item) ItemResponse {
	return ItemResponse{
		ID:                i.ID,
		Code:              i.Code,
		Name:              i.Name,
		Unit:              i.Unit,
		CostPrice:         i.CostPrice,
		UnitPrice:         i.UnitPrice,
		WastageAllowed:    i.WastagePolicy.Allowed,
		MaxWastagePercent: i.WastagePolicy.MaxWastagePercent,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

// StoreResponse is the API view of a store
type StoreResponse struct {
	ID        uuid.UUID           `json:"id"`
	Code      string              `json:"code"`
	Name      string              `json:"name"`
	Kind      inventory.StoreKind `json:"kind"`
	CreatedAt time.Time           `json:"created_at"`
}

// ContractorResponse is the API view of a contractor
type ContractorResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogService manages items, stores and contractors
type CatalogService struct {
	scope     TransactionScope
	validator *validation.Validator
	logger    *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(scope TransactionScope, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{scope: scope, validator: validation.New(), logger: logger}
}

// CreateItem registers a new item
func (s *CatalogService) CreateItem(ctx context.Context, cmd CreateItemCommand) (*ItemResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	var out ItemResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Items().ExistsByCode(ctx, cmd.Code)
		if err != nil {
			return fmt.Errorf("check item code: %w", err)
		}
		if exists {
			return shared.ErrAlreadyExists.WithDetail("code", cmd.Code)
		}
		item, err := inventory.NewItem(cmd.Code, cmd.Name, cmd.Unit, cmd.CostPrice, cmd.UnitPrice, inventory.WastagePolicy{
			Allowed:           cmd.WastageAllowed,
			MaxWastagePercent: cmd.MaxWastagePercent,
		})
		if err != nil {
			return err
		}
		if err := repos.Items().Save(ctx, item); err != nil {
			return fmt.Errorf("save item: %w", err)
		}
		out = ToItemResponse(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("item created", zap.String("code", out.Code), zap.String("item_id", out.ID.String()))
	return &out, nil
}

// UpdateItem changes descriptive fields, prices or the wastage policy.
// Batches already received keep their prices.
func (s *CatalogService) UpdateItem(ctx context.Context, id uuid.UUID, cmd UpdateItemCommand) (*ItemResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	var out ItemResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.Items().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if cmd.Name != nil || cmd.Unit != nil {
			name, unit := item.Name, item.Unit
			if cmd.Name != nil {
				name = *cmd.Name
			}
			if cmd.Unit != nil {
				unit = *cmd.Unit
			}
			if err := item.UpdateDetails(name, unit); err != nil {
				return err
			}
		}
		if cmd.CostPrice != nil || cmd.UnitPrice != nil {
			cost, unit := item.CostPrice, item.UnitPrice
			if cmd.CostPrice != nil {
				cost = *cmd.CostPrice
			}
			if cmd.UnitPrice != nil {
				unit = *cmd.UnitPrice
			}
			if err := item.UpdatePrices(cost, unit); err != nil {
				return err
			}
		}
		if cmd.WastageAllowed != nil || cmd.MaxWastagePercent != nil {
			policy := item.WastagePolicy
			if cmd.WastageAllowed != nil {
				policy.Allowed = *cmd.WastageAllowed
			}
			if cmd.MaxWastagePercent != nil {
				policy.MaxWastagePercent = *cmd.MaxWastagePercent
			}
			if err := item.SetWastagePolicy(policy); err != nil {
				return err
			}
		}
		if err := repos.Items().Save(ctx, item); err != nil {
			return fmt.Errorf("save item: %w", err)
		}
		out = ToItemResponse(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItem returns one item
func (s *CatalogService) GetItem(ctx context.Context, id uuid.UUID) (*ItemResponse, error) {
	var out ItemResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.Items().FindByID(ctx, id)
		if err != nil {
			return err
		}
		out = ToItemResponse(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListItems returns a page of items ordered by code
func (s *CatalogService) ListItems(ctx context.Context, filter inventory.ItemFilter) (*shared.Paginated[ItemResponse], error) {
	filter.Filter = filter.Filter.Normalize()
	var page shared.Paginated[ItemResponse]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		items, total, err := repos.Items().FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		out := make([]ItemResponse, len(items))
		for i := range items {
			out[i] = ToItemResponse(&items[i])
		}
		page = shared.NewPaginated(out, total, filter.Page, filter.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteItem removes an item that was never received
func (s *CatalogService) DeleteItem(ctx context.Context, id uuid.UUID) error {
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Items().FindByID(ctx, id); err != nil {
			return err
		}
		count, err := repos.Batches().CountByItem(ctx, id)
		if err != nil {
			return fmt.Errorf("count batches: %w", err)
		}
		if count > 0 {
			return shared.NewValidationError("item %s has %d batches and cannot be deleted", id, count).
				WithDetail("item_id", id.String())
		}
		return repos.Items().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("item deleted", zap.String("item_id", id.String()))
	return nil
}

// CreateStore registers a store
func (s *CatalogService) CreateStore(ctx context.Context, cmd CreateStoreCommand) (*StoreResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	var out StoreResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Stores().ExistsByCode(ctx, cmd.Code)
		if err != nil {
			return fmt.Errorf("check store code: %w", err)
		}
		if exists {
			return shared.ErrAlreadyExists.WithDetail("code", cmd.Code)
		}
		store, err := inventory.NewStore(cmd.Code, cmd.Name, cmd.Kind)
		if err != nil {
			return err
		}
		if err := repos.Stores().Save(ctx, store); err != nil {
			return fmt.Errorf("save store: %w", err)
		}
		out = toStoreResponse(store)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("store created", zap.String("code", out.Code), zap.String("kind", string(out.Kind)))
	return &out, nil
}

// ListStores returns a page of stores
func (s *CatalogService) ListStores(ctx context.Context, filter shared.Filter) (*shared.Paginated[StoreResponse], error) {
	filter = filter.Normalize()
	var page shared.Paginated[StoreResponse]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		stores, total, err := repos.Stores().FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list stores: %w", err)
		}
		out := make([]StoreResponse, len(stores))
		for i := range stores {
			out[i] = toStoreResponse(&stores[i])
		}
		page = shared.NewPaginated(out, total, filter.Page, filter.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateContractor registers an active contractor
func (s *CatalogService) CreateContractor(ctx context.Context, cmd CreateContractorCommand) (*ContractorResponse, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, err
	}
	var out ContractorResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Contractors().ExistsByCode(ctx, cmd.Code)
		if err != nil {
			return fmt.Errorf("check contractor code: %w", err)
		}
		if exists {
			return shared.ErrAlreadyExists.WithDetail("code", cmd.Code)
		}
		contractor, err := inventory.NewContractor(cmd.Code, cmd.Name)
		if err != nil {
			return err
		}
		if err := repos.Contractors().Save(ctx, contractor); err != nil {
			return fmt.Errorf("save contractor: %w", err)
		}
		out = toContractorResponse(contractor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contractor created", zap.String("code", out.Code))
	return &out, nil
}

// SetContractorActive enables or disables issuance to a contractor
func (s *CatalogService) SetContractorActive(ctx context.Context, id uuid.UUID, active bool) (*ContractorResponse, error) {
	var out ContractorResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		contractor, err := repos.Contractors().FindByID(ctx, id)
		if err != nil {
			return err
		}
		contractor.Active = active
		contractor.Touch()
		if err := repos.Contractors().Save(ctx, contractor); err != nil {
			return fmt.Errorf("save contractor: %w", err)
		}
		out = toContractorResponse(contractor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContractors returns a page of contractors
func (s *CatalogService) ListContractors(ctx context.Context, filter shared.Filter) (*shared.Paginated[ContractorResponse], error) {
	filter = filter.Normalize()
	var page shared.Paginated[ContractorResponse]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		contractors, total, err := repos.Contractors().FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list contractors: %w", err)
		}
		out := make([]ContractorResponse, len(contractors))
		for i := range contractors {
			out[i] = toContractorResponse(&contractors[i])
		}
		page = shared.NewPaginated(out, total, filter.Page, filter.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func toStoreResponse(s *inventory.Store) StoreResponse {
	return StoreResponse{ID: s.ID, Code: s.Code, Name: s.Name, Kind: s.Kind, CreatedAt: s.CreatedAt}
}

func toContractorResponse(c *inventory.Contractor) ContractorResponse {
	return ContractorResponse{ID: c.ID, Code: c.Code, Name: c.Name, Active: c.Active, CreatedAt: c.CreatedAt}
}
