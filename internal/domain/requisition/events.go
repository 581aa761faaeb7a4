package requisition

import (
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeStockRequestCreated      = "requisition.created"
	EventTypeStockRequestTransitioned = "requisition.transitioned"
)

// StockRequestCreatedEvent is raised when a request is raised
type StockRequestCreatedEvent struct {
	shared.BaseDomainEvent
	RequestNumber   string     `json:"request_number"`
	OriginStoreID   uuid.UUID  `json:"origin_store_id"`
	SourceType      SourceType `json:"source_type"`
	RequesterID     string     `json:"requester_id"`
	Stage           Stage      `json:"stage"`
	NotifyRoles     []Role     `json:"notify_roles,omitempty"`
	NotifyRequester bool       `json:"notify_requester"`
}

// NewStockRequestCreatedEvent creates the event
func NewStockRequestCreatedEvent(r *StockRequest) *StockRequestCreatedEvent {
	roles, requester := NotifyTarget(r.Stage)
	return &StockRequestCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockRequestCreated, AggregateTypeStockRequest, r.ID),
		RequestNumber:   r.Number,
		OriginStoreID:   r.OriginStoreID,
		SourceType:      r.SourceType,
		RequesterID:     r.RequesterID,
		Stage:           r.Stage,
		NotifyRoles:     roles,
		NotifyRequester: requester,
	}
}

// StockRequestTransitionedEvent is raised after every workflow transition
type StockRequestTransitionedEvent struct {
	shared.BaseDomainEvent
	RequestNumber   string     `json:"request_number"`
	RequesterID     string     `json:"requester_id"`
	Action          ActionKind `json:"action"`
	ActorID         string     `json:"actor_id"`
	FromStage       Stage      `json:"from_stage"`
	ToStage         Stage      `json:"to_stage"`
	Status          Status     `json:"status"`
	Comment         string     `json:"comment,omitempty"`
	NotifyRoles     []Role     `json:"notify_roles,omitempty"`
	NotifyRequester bool       `json:"notify_requester"`
}

// NewStockRequestTransitionedEvent creates the event for the current state of r
func NewStockRequestTransitionedEvent(r *StockRequest, from Stage, action ActionKind, actor Actor, comment string) *StockRequestTransitionedEvent {
	roles, requester := NotifyTarget(r.Stage)
	return &StockRequestTransitionedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockRequestTransitioned, AggregateTypeStockRequest, r.ID),
		RequestNumber:   r.Number,
		RequesterID:     r.RequesterID,
		Action:          action,
		ActorID:         actor.ID,
		FromStage:       from,
		ToStage:         r.Stage,
		Status:          r.Status,
		Comment:         comment,
		NotifyRoles:     roles,
		NotifyRequester: requester,
	}
}
