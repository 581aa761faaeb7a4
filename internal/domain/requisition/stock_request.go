package requisition

import (
	"strings"
	"time"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeStockRequest is the aggregate type for stock request events
const AggregateTypeStockRequest = "StockRequest"

// SourceType says where the requested stock comes from
type SourceType string

const (
	// SourceTypeSLT is the external supplier
	SourceTypeSLT           SourceType = "SLT"
	SourceTypeLocalPurchase SourceType = "LOCAL_PURCHASE"
	SourceTypeMainStore     SourceType = "MAIN_STORE"
)

// IsValid checks if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeSLT, SourceTypeLocalPurchase, SourceTypeMainStore:
		return true
	}
	return false
}

// Status is the business status of a stock request
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusApproved           Status = "APPROVED"
	StatusRejected           Status = "REJECTED"
	StatusReturned           Status = "RETURNED"
	StatusPartiallyCompleted Status = "PARTIALLY_COMPLETED"
	StatusCompleted          Status = "COMPLETED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusReturned,
		StatusPartiallyCompleted, StatusCompleted:
		return true
	}
	return false
}

// Stage is the workflow position of a stock request
type Stage string

const (
	StageARMApproval           Stage = "ARM_APPROVAL"
	StageStoresManagerApproval Stage = "STORES_MANAGER_APPROVAL"
	StageOSPManagerApproval    Stage = "OSP_MANAGER_APPROVAL"
	StageProcurement           Stage = "PROCUREMENT"
	StageGRNPending            Stage = "GRN_PENDING"
	StageMainStoreRelease      Stage = "MAIN_STORE_RELEASE"
	StageSubStoreReceive       Stage = "SUB_STORE_RECEIVE"
	StageCompleted             Stage = "COMPLETED"
	StageReturned              Stage = "RETURNED"
)

// IsValid checks if the stage is valid
func (s Stage) IsValid() bool {
	switch s {
	case StageARMApproval, StageStoresManagerApproval, StageOSPManagerApproval,
		StageProcurement, StageGRNPending, StageMainStoreRelease,
		StageSubStoreReceive, StageCompleted, StageReturned:
		return true
	}
	return false
}

// IsApproval reports whether the stage waits on an approver
func (s Stage) IsApproval() bool {
	return s == StageARMApproval || s == StageStoresManagerApproval || s == StageOSPManagerApproval
}

// InitialStage returns the first stage for a request raised by a store of the given kind
func InitialStage(originKind inventory.StoreKind) Stage {
	if originKind == inventory.StoreKindSub {
		return StageARMApproval
	}
	return StageOSPManagerApproval
}

// LineQuantity pairs an item with a quantity
type LineQuantity struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// StockRequestLine is one requested item
type StockRequestLine struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RequestID         uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uq_stock_request_line_item,priority:1"`
	LineNo            int             `gorm:"not null"`
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_stock_request_line_item,priority:2"`
	RequestedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ApprovedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	IssuedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReceivedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockRequestLine) TableName() string {
	return "stock_request_lines"
}

func (l *StockRequestLine) touch() {
	l.UpdatedAt = time.Now().UTC()
}

// StockRequestApproval is one row of the transition history
type StockRequestApproval struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequestID uuid.UUID  `gorm:"type:uuid;not null;index"`
	FromStage Stage      `gorm:"type:varchar(40);not null"`
	ToStage   Stage      `gorm:"type:varchar(40);not null"`
	Action    ActionKind `gorm:"type:varchar(40);not null"`
	ActorID   string     `gorm:"type:varchar(100);not null"`
	ActorRole string     `gorm:"type:varchar(50)"`
	Comment   string     `gorm:"type:text"`
	CreatedAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockRequestApproval) TableName() string {
	return "stock_request_approvals"
}

// StockRequest is the aggregate driving replenishment and internal transfers
type StockRequest struct {
	shared.BaseAggregateRoot
	Number             string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	OriginStoreID      uuid.UUID              `gorm:"type:uuid;not null;index"`
	OriginStoreKind    inventory.StoreKind    `gorm:"type:varchar(10);not null"`
	DestinationStoreID *uuid.UUID             `gorm:"type:uuid;index"`
	RequesterID        string                 `gorm:"type:varchar(100);not null;index"`
	SourceType         SourceType             `gorm:"type:varchar(20);not null"`
	Status             Status                 `gorm:"type:varchar(30);not null;index"`
	Stage              Stage                  `gorm:"column:workflow_stage;type:varchar(40);not null;index"`
	PurchaseOrderRef   string                 `gorm:"type:varchar(100)"`
	RejectionReason    string                 `gorm:"type:text"`
	Note               string                 `gorm:"type:text"`
	Lines              []StockRequestLine     `gorm:"foreignKey:RequestID;references:ID"`
	Approvals          []StockRequestApproval `gorm:"foreignKey:RequestID;references:ID"`
}

// TableName returns the table name for GORM
func (StockRequest) TableName() string {
	return "stock_requests"
}

// NewStockRequest validates and creates a request at its initial stage.
// destination must already be resolved for MAIN_STORE sourcing.
func NewStockRequest(number string, origin, destination *inventory.Store, requesterID string, source SourceType, lines []LineQuantity, note string) (*StockRequest, error) {
	if number == "" {
		return nil, shared.NewValidationError("request number is required")
	}
	if origin == nil {
		return nil, shared.NewValidationError("origin store is required")
	}
	if strings.TrimSpace(requesterID) == "" {
		return nil, shared.NewValidationError("requester is required")
	}
	if !source.IsValid() {
		return nil, shared.NewValidationError("invalid source type %q", source)
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError("stock request must have at least one line")
	}
	if origin.Kind == inventory.StoreKindSub && source == SourceTypeSLT {
		return nil, shared.ErrSubStoreCannotRequestExternalSupply.
			WithDetail("origin_store_id", origin.ID.String()).
			WithDetail("source_type", string(source))
	}

	var destinationID *uuid.UUID
	if source == SourceTypeMainStore {
		if destination == nil {
			return nil, shared.NewValidationError("destination store is required for MAIN_STORE sourcing")
		}
		if !destination.IsMain() {
			return nil, shared.NewValidationError("destination store %s is not a MAIN store", destination.Code)
		}
		if destination.ID == origin.ID {
			return nil, shared.NewValidationError("destination store must differ from origin store")
		}
		id := destination.ID
		destinationID = &id
	}

	r := &StockRequest{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Number:             number,
		OriginStoreID:      origin.ID,
		OriginStoreKind:    origin.Kind,
		DestinationStoreID: destinationID,
		RequesterID:        requesterID,
		SourceType:         source,
		Status:             StatusPending,
		Stage:              InitialStage(origin.Kind),
		Note:               note,
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	for i, in := range lines {
		if in.ItemID == uuid.Nil {
			return nil, shared.NewValidationError("line %d: item is required", i+1)
		}
		if _, dup := seen[in.ItemID]; dup {
			return nil, shared.NewValidationError("line %d: item %s appears more than once", i+1, in.ItemID)
		}
		seen[in.ItemID] = struct{}{}
		qty := valueobject.RoundQuantity(in.Quantity)
		if !qty.IsPositive() {
			return nil, shared.NewValidationError("line %d: quantity must be positive", i+1)
		}
		r.Lines = append(r.Lines, StockRequestLine{
			ID:                uuid.New(),
			RequestID:         r.ID,
			LineNo:            i + 1,
			ItemID:            in.ItemID,
			RequestedQuantity: qty,
			ApprovedQuantity:  decimal.Zero,
			IssuedQuantity:    decimal.Zero,
			ReceivedQuantity:  decimal.Zero,
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.CreatedAt,
		})
	}

	r.AddDomainEvent(NewStockRequestCreatedEvent(r))
	return r, nil
}

// Line returns the line for an item, or nil
func (r *StockRequest) Line(itemID uuid.UUID) *StockRequestLine {
	for i := range r.Lines {
		if r.Lines[i].ItemID == itemID {
			return &r.Lines[i]
		}
	}
	return nil
}

// IsTerminal reports whether no further workflow action applies
func (r *StockRequest) IsTerminal() bool {
	return r.Stage == StageCompleted || r.Status == StatusRejected || r.Status == StatusReturned
}

// ReleasableQuantities returns the approved quantity still to be issued per line
func (r *StockRequest) ReleasableQuantities() []LineQuantity {
	out := make([]LineQuantity, 0, len(r.Lines))
	for _, l := range r.Lines {
		rem := valueobject.RoundQuantity(l.ApprovedQuantity.Sub(l.IssuedQuantity))
		if rem.IsPositive() {
			out = append(out, LineQuantity{ItemID: l.ItemID, Quantity: rem})
		}
	}
	return out
}

// ClampRelease rounds release lines and caps any quantity that overshoots the
// unreleased approval by no more than the tolerance, so the ledger never
// issues more than was approved.
func (r *StockRequest) ClampRelease(lines []LineQuantity) []LineQuantity {
	return r.clampLines(lines, func(l *StockRequestLine) decimal.Decimal {
		return l.ApprovedQuantity.Sub(l.IssuedQuantity)
	})
}

// ClampReceive does the same for receipt lines against the unreceived issue
func (r *StockRequest) ClampReceive(lines []LineQuantity) []LineQuantity {
	return r.clampLines(lines, func(l *StockRequestLine) decimal.Decimal {
		return l.IssuedQuantity.Sub(l.ReceivedQuantity)
	})
}

func (r *StockRequest) clampLines(lines []LineQuantity, outstanding func(*StockRequestLine) decimal.Decimal) []LineQuantity {
	out := make([]LineQuantity, len(lines))
	for i, in := range lines {
		qty := valueobject.RoundQuantity(in.Quantity)
		if l := r.Line(in.ItemID); l != nil {
			rem := valueobject.RoundQuantity(outstanding(l))
			if qty.GreaterThan(rem) && !valueobject.Exceeds(qty, rem) {
				qty = rem
			}
		}
		out[i] = LineQuantity{ItemID: in.ItemID, Quantity: qty}
	}
	return out
}

// RecordGoodsReceipt applies a GRN linked to this request. Lines for items not
// on the request are ignored. The request completes once every line has
// received at least its requested quantity; otherwise it stays at GRN_PENDING.
func (r *StockRequest) RecordGoodsReceipt(actor Actor, grnNumber string, lines []LineQuantity) error {
	if err := r.CanReceiveGoods(); err != nil {
		return err
	}
	for _, in := range lines {
		if l := r.Line(in.ItemID); l != nil {
			l.ReceivedQuantity = valueobject.RoundQuantity(l.ReceivedQuantity.Add(in.Quantity))
			l.touch()
		}
	}

	from := r.Stage
	if r.allReceived(func(l *StockRequestLine) decimal.Decimal { return l.RequestedQuantity }) {
		r.Status = StatusCompleted
		r.Stage = StageCompleted
	} else {
		r.Status = StatusPartiallyCompleted
	}
	r.recordTransition(from, ActionGoodsReceipt, actor, grnNumber)
	return nil
}

// CanReceiveGoods reports whether a GRN may be linked to the request
func (r *StockRequest) CanReceiveGoods() error {
	if r.Stage != StageGRNPending {
		return shared.NewInvalidWorkflowStageError(r.ID, string(r.Stage), string(ActionGoodsReceipt))
	}
	return nil
}

func (r *StockRequest) allReceived(target func(l *StockRequestLine) decimal.Decimal) bool {
	for i := range r.Lines {
		if valueobject.Exceeds(target(&r.Lines[i]), r.Lines[i].ReceivedQuantity) {
			return false
		}
	}
	return true
}

func (r *StockRequest) recordTransition(from Stage, action ActionKind, actor Actor, comment string) {
	now := time.Now().UTC()
	r.Approvals = append(r.Approvals, StockRequestApproval{
		ID:        uuid.New(),
		RequestID: r.ID,
		FromStage: from,
		ToStage:   r.Stage,
		Action:    action,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Comment:   comment,
		CreatedAt: now,
	})
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewStockRequestTransitionedEvent(r, from, action, actor, comment))
}
