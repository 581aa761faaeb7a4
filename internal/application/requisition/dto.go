package requisition

import (
	"time"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineInput is a requested item and quantity
type LineInput struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// CreateStockRequestCommand raises a new stock request.
// DestinationStoreID may be omitted for MAIN_STORE sourcing when exactly one MAIN store exists.
type CreateStockRequestCommand struct {
	OriginStoreID      uuid.UUID              `json:"origin_store_id" validate:"required"`
	DestinationStoreID *uuid.UUID             `json:"destination_store_id"`
	SourceType         requisition.SourceType `json:"source_type" validate:"required,oneof=SLT LOCAL_PURCHASE MAIN_STORE"`
	Lines              []LineInput            `json:"lines" validate:"required,min=1,dive"`
	Note               string                 `json:"note" validate:"max=2000"`
	Actor              shared.Actor           `json:"-"`
}

// ReleaseCommand issues approved quantities from the destination MAIN store.
// Empty Lines releases everything still approved and unissued.
type ReleaseCommand struct {
	Lines   []requisition.LineQuantity `json:"lines" validate:"dive"`
	Comment string                     `json:"comment" validate:"max=1000"`
	Actor   shared.Actor               `json:"-"`
}

// ReceiveCommand confirms arrival of released stock at the origin store
type ReceiveCommand struct {
	Lines   []requisition.LineQuantity `json:"lines" validate:"required,min=1,dive"`
	Comment string                     `json:"comment" validate:"max=1000"`
	Actor   shared.Actor               `json:"-"`
}

// ListStockRequestsQuery filters request listings
type ListStockRequestsQuery struct {
	Stage         *requisition.Stage  `form:"stage"`
	Status        *requisition.Status `form:"status"`
	OriginStoreID *uuid.UUID          `form:"origin_store_id"`
	RequesterID   string              `form:"requester_id"`
	Page          int                 `form:"page"`
	PageSize      int                 `form:"page_size"`
	OrderBy       string              `form:"order_by"`
	OrderDir      string              `form:"order_dir"`
}

// StockRequestLineResponse is one line of a request
type StockRequestLineResponse struct {
	LineNo            int             `json:"line_no"`
	ItemID            uuid.UUID       `json:"item_id"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	ApprovedQuantity  decimal.Decimal `json:"approved_quantity"`
	IssuedQuantity    decimal.Decimal `json:"issued_quantity"`
	ReceivedQuantity  decimal.Decimal `json:"received_quantity"`
}

// ApprovalResponse is one history row
type ApprovalResponse struct {
	FromStage requisition.Stage      `json:"from_stage"`
	ToStage   requisition.Stage      `json:"to_stage"`
	Action    requisition.ActionKind `json:"action"`
	ActorID   string                 `json:"actor_id"`
	ActorRole string                 `json:"actor_role,omitempty"`
	Comment   string                 `json:"comment,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// StockRequestResponse is the API view of a stock request
type StockRequestResponse struct {
	ID                 uuid.UUID                  `json:"id"`
	Number             string                     `json:"number"`
	OriginStoreID      uuid.UUID                  `json:"origin_store_id"`
	OriginStoreKind    inventory.StoreKind        `json:"origin_store_kind"`
	DestinationStoreID *uuid.UUID                 `json:"destination_store_id,omitempty"`
	RequesterID        string                     `json:"requester_id"`
	SourceType         requisition.SourceType     `json:"source_type"`
	Status             requisition.Status         `json:"status"`
	Stage              requisition.Stage          `json:"workflow_stage"`
	AllowedActions     []requisition.ActionKind   `json:"allowed_actions"`
	PurchaseOrderRef   string                     `json:"purchase_order_ref,omitempty"`
	RejectionReason    string                     `json:"rejection_reason,omitempty"`
	Note               string                     `json:"note,omitempty"`
	Version            int                        `json:"version"`
	Lines              []StockRequestLineResponse `json:"lines"`
	Approvals          []ApprovalResponse         `json:"approvals,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`

	// TransactionNumber is set when the call posted a ledger transaction
	TransactionNumber string `json:"transaction_number,omitempty"`
}

// ToStockRequestResponse converts a request
func ToStockRequestResponse(r *requisition.StockRequest) *StockRequestResponse {
	lines := make([]StockRequestLineResponse, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = StockRequestLineResponse{
			LineNo:            l.LineNo,
			ItemID:            l.ItemID,
			RequestedQuantity: l.RequestedQuantity,
			ApprovedQuantity:  l.ApprovedQuantity,
			IssuedQuantity:    l.IssuedQuantity,
			ReceivedQuantity:  l.ReceivedQuantity,
		}
	}
	approvals := make([]ApprovalResponse, len(r.Approvals))
	for i, a := range r.Approvals {
		approvals[i] = ApprovalResponse{
			FromStage: a.FromStage,
			ToStage:   a.ToStage,
			Action:    a.Action,
			ActorID:   a.ActorID,
			ActorRole: a.ActorRole,
			Comment:   a.Comment,
			CreatedAt: a.CreatedAt,
		}
	}
	return &StockRequestResponse{
		ID:                 r.ID,
		Number:             r.Number,
		OriginStoreID:      r.OriginStoreID,
		OriginStoreKind:    r.OriginStoreKind,
		DestinationStoreID: r.DestinationStoreID,
		RequesterID:        r.RequesterID,
		SourceType:         r.SourceType,
		Status:             r.Status,
		Stage:              r.Stage,
		AllowedActions:     requisition.AllowedActions(r.Stage),
		PurchaseOrderRef:   r.PurchaseOrderRef,
		RejectionReason:    r.RejectionReason,
		Note:               r.Note,
		Version:            r.Version,
		Lines:              lines,
		Approvals:          approvals,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
