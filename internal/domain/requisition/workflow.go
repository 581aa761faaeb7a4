package requisition

import (
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role owns one or more workflow stages
type Role string

const (
	RoleARM                Role = "ARM"
	RoleStoresManager      Role = "STORES_MANAGER"
	RoleOSPManager         Role = "OSP_MANAGER"
	RoleProcurementOfficer Role = "PROCUREMENT_OFFICER"
	RoleMainStoreKeeper    Role = "MAIN_STORE_KEEPER"
)

// Actor identifies who performs a transition
type Actor = shared.Actor

// ActionKind discriminates workflow actions
type ActionKind string

const (
	ActionARMApprove           ActionKind = "ARM_APPROVE"
	ActionStoresManagerApprove ActionKind = "STORES_MANAGER_APPROVE"
	ActionOSPManagerApprove    ActionKind = "OSP_MANAGER_APPROVE"
	ActionReject               ActionKind = "REJECT"
	ActionResubmit             ActionKind = "RESUBMIT"
	ActionProcurementComplete  ActionKind = "PROCUREMENT_COMPLETE"
	ActionRelease              ActionKind = "RELEASE"
	ActionReceive              ActionKind = "RECEIVE"
	// ActionGoodsReceipt is recorded when a linked GRN lands; it is not a workflow action
	ActionGoodsReceipt ActionKind = "GRN_RECEIPT"
	// ActionCreate is recorded in events when a request is raised
	ActionCreate ActionKind = "CREATE"
)

// NewRequestNotFoundError reports a missing request the same way as an out-of-stage action
func NewRequestNotFoundError(id uuid.UUID, action ActionKind) *shared.DomainError {
	return shared.NewInvalidWorkflowStageError(id, "NONE", string(action)).
		WithDetail("reason", "stock request not found")
}

// IsValid reports whether callers may submit the action kind
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionARMApprove, ActionStoresManagerApprove, ActionOSPManagerApprove,
		ActionReject, ActionResubmit, ActionProcurementComplete,
		ActionRelease, ActionReceive:
		return true
	}
	return false
}

// RejectPayload carries the mandatory rejection reason
type RejectPayload struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// OSPApprovalPayload optionally trims the quantities approved per line
type OSPApprovalPayload struct {
	ApprovedQuantities []LineQuantity `json:"approved_quantities" validate:"dive"`
}

// ProcurementPayload carries the fulfilled purchase order
type ProcurementPayload struct {
	PurchaseOrderRef string `json:"purchase_order_ref" validate:"required,max=100"`
}

// QuantitiesPayload carries issued (RELEASE) or received (RECEIVE) quantities
type QuantitiesPayload struct {
	Lines []LineQuantity `json:"lines" validate:"required,min=1,dive"`
}

// Action is a tagged workflow action: Kind selects which payload is meaningful
type Action struct {
	Kind        ActionKind          `json:"kind" validate:"required"`
	Actor       Actor               `json:"actor" validate:"required"`
	Comment     string              `json:"comment" validate:"max=1000"`
	Reject      *RejectPayload      `json:"reject,omitempty"`
	OSPApproval *OSPApprovalPayload `json:"osp_approval,omitempty"`
	Procurement *ProcurementPayload `json:"procurement,omitempty"`
	Release     *QuantitiesPayload  `json:"release,omitempty"`
	Receive     *QuantitiesPayload  `json:"receive,omitempty"`
}

// Validate checks that the payload required by Kind is present
func (a Action) Validate() error {
	if strings.TrimSpace(a.Actor.ID) == "" {
		return shared.NewValidationError("actor is required")
	}
	switch a.Kind {
	case ActionReject:
		if a.Reject == nil || strings.TrimSpace(a.Reject.Reason) == "" {
			return shared.NewValidationError("a rejection reason is required")
		}
	case ActionProcurementComplete:
		if a.Procurement == nil || strings.TrimSpace(a.Procurement.PurchaseOrderRef) == "" {
			return shared.NewValidationError("a purchase order reference is required")
		}
	case ActionRelease:
		if a.Release == nil || len(a.Release.Lines) == 0 {
			return shared.NewValidationError("release lines are required")
		}
	case ActionReceive:
		if a.Receive == nil || len(a.Receive.Lines) == 0 {
			return shared.NewValidationError("receive lines are required")
		}
	case ActionARMApprove, ActionStoresManagerApprove, ActionOSPManagerApprove, ActionResubmit:
	default:
		return shared.NewValidationError("unknown action %q", a.Kind)
	}
	return nil
}

// transition is one row of the workflow table
type transition struct {
	next  func(r *StockRequest) Stage
	apply func(r *StockRequest, a Action) error
}

func to(stage Stage) func(*StockRequest) Stage {
	return func(*StockRequest) Stage { return stage }
}

func noEffect(*StockRequest, Action) error { return nil }

var rejectTransition = transition{next: to(StageReturned), apply: applyReject}

// workflow is the complete state machine: any (stage, action) pair absent here is rejected.
// GRN_PENDING has no rows; it is closed by RecordGoodsReceipt.
var workflow = map[Stage]map[ActionKind]transition{
	StageARMApproval: {
		ActionARMApprove: {next: to(StageStoresManagerApproval), apply: noEffect},
		ActionReject:     rejectTransition,
	},
	StageStoresManagerApproval: {
		ActionStoresManagerApprove: {next: to(StageOSPManagerApproval), apply: noEffect},
		ActionReject:               rejectTransition,
	},
	StageOSPManagerApproval: {
		ActionOSPManagerApprove: {next: fulfilmentStage, apply: applyOSPApproval},
		ActionReject:            rejectTransition,
	},
	StageReturned: {
		ActionResubmit: {next: func(r *StockRequest) Stage { return InitialStage(r.OriginStoreKind) }, apply: applyResubmit},
	},
	StageProcurement: {
		ActionProcurementComplete: {next: to(StageGRNPending), apply: applyProcurementComplete},
	},
	StageMainStoreRelease: {
		ActionRelease: {next: to(StageSubStoreReceive), apply: applyRelease},
	},
	StageSubStoreReceive: {
		ActionReceive: {next: to(StageCompleted), apply: applyReceive},
	},
}

// fulfilmentStage branches final approval on source type
func fulfilmentStage(r *StockRequest) Stage {
	switch r.SourceType {
	case SourceTypeLocalPurchase:
		return StageProcurement
	case SourceTypeMainStore:
		return StageMainStoreRelease
	default:
		return StageGRNPending
	}
}

// AllowedActions lists the actions accepted at a stage
func AllowedActions(stage Stage) []ActionKind {
	row := workflow[stage]
	out := make([]ActionKind, 0, len(row))
	for _, k := range []ActionKind{
		ActionARMApprove, ActionStoresManagerApprove, ActionOSPManagerApprove, ActionReject,
		ActionResubmit, ActionProcurementComplete, ActionRelease, ActionReceive,
	} {
		if _, ok := row[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// CanApply returns InvalidWorkflowStage when the action is not accepted at the current stage
func (r *StockRequest) CanApply(kind ActionKind) error {
	if _, ok := workflow[r.Stage][kind]; !ok {
		return shared.NewInvalidWorkflowStageError(r.ID, string(r.Stage), string(kind))
	}
	return nil
}

// Apply runs one workflow transition. On error the request is left unchanged.
func (r *StockRequest) Apply(a Action) error {
	t, ok := workflow[r.Stage][a.Kind]
	if !ok {
		return shared.NewInvalidWorkflowStageError(r.ID, string(r.Stage), string(a.Kind))
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if err := t.apply(r, a); err != nil {
		return err
	}
	from := r.Stage
	r.Stage = t.next(r)
	comment := a.Comment
	if a.Kind == ActionReject {
		comment = a.Reject.Reason
	}
	r.recordTransition(from, a.Kind, a.Actor, comment)
	return nil
}

func applyReject(r *StockRequest, a Action) error {
	r.Status = StatusReturned
	r.RejectionReason = strings.TrimSpace(a.Reject.Reason)
	return nil
}

func applyResubmit(r *StockRequest, _ Action) error {
	r.Status = StatusPending
	r.RejectionReason = ""
	for i := range r.Lines {
		r.Lines[i].ApprovedQuantity = decimal.Zero
		r.Lines[i].touch()
	}
	return nil
}

func applyOSPApproval(r *StockRequest, a Action) error {
	approved := make(map[uuid.UUID]decimal.Decimal, len(r.Lines))
	for _, l := range r.Lines {
		approved[l.ItemID] = l.RequestedQuantity
	}
	if a.OSPApproval != nil {
		for _, q := range a.OSPApproval.ApprovedQuantities {
			l := r.Line(q.ItemID)
			if l == nil {
				return shared.NewValidationError("item %s is not on request %s", q.ItemID, r.Number)
			}
			qty := valueobject.RoundQuantity(q.Quantity)
			if qty.IsNegative() {
				return shared.NewValidationError("approved quantity for item %s cannot be negative", q.ItemID)
			}
			if valueobject.Exceeds(qty, l.RequestedQuantity) {
				return shared.NewValidationError("approved quantity %s for item %s exceeds requested %s",
					qty.String(), q.ItemID, l.RequestedQuantity.String())
			}
			approved[q.ItemID] = qty
		}
	}
	for i := range r.Lines {
		r.Lines[i].ApprovedQuantity = approved[r.Lines[i].ItemID]
		r.Lines[i].touch()
	}
	r.Status = StatusApproved
	return nil
}

func applyProcurementComplete(r *StockRequest, a Action) error {
	r.PurchaseOrderRef = strings.TrimSpace(a.Procurement.PurchaseOrderRef)
	return nil
}

// applyRelease stamps issued quantities; the ledger movement has already been
// written by the caller in the same unit of work
func applyRelease(r *StockRequest, a Action) error {
	issued, err := r.collectLines(r.ClampRelease(a.Release.Lines), func(l *StockRequestLine, qty decimal.Decimal) error {
		if !qty.IsPositive() {
			return shared.NewValidationError("release quantity for item %s must be positive", l.ItemID)
		}
		if valueobject.Exceeds(l.IssuedQuantity.Add(qty), l.ApprovedQuantity) {
			return shared.NewValidationError("release quantity %s for item %s exceeds approved %s",
				qty.String(), l.ItemID, l.ApprovedQuantity.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := range r.Lines {
		if qty, ok := issued[r.Lines[i].ItemID]; ok {
			r.Lines[i].IssuedQuantity = valueobject.RoundQuantity(r.Lines[i].IssuedQuantity.Add(qty))
			r.Lines[i].touch()
		}
	}
	return nil
}

func applyReceive(r *StockRequest, a Action) error {
	received, err := r.collectLines(r.ClampReceive(a.Receive.Lines), func(l *StockRequestLine, qty decimal.Decimal) error {
		if qty.IsNegative() {
			return shared.NewValidationError("received quantity for item %s cannot be negative", l.ItemID)
		}
		if valueobject.Exceeds(l.ReceivedQuantity.Add(qty), l.IssuedQuantity) {
			return shared.NewValidationError("received quantity %s for item %s exceeds issued %s",
				qty.String(), l.ItemID, l.IssuedQuantity.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := range r.Lines {
		if qty, ok := received[r.Lines[i].ItemID]; ok {
			r.Lines[i].ReceivedQuantity = valueobject.RoundQuantity(r.Lines[i].ReceivedQuantity.Add(qty))
			r.Lines[i].touch()
		}
	}
	if r.allReceived(func(l *StockRequestLine) decimal.Decimal { return l.IssuedQuantity }) {
		r.Status = StatusCompleted
	} else {
		r.Status = StatusPartiallyCompleted
	}
	return nil
}

// collectLines validates payload lines against the request without mutating it
func (r *StockRequest) collectLines(lines []LineQuantity, check func(l *StockRequestLine, qty decimal.Decimal) error) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(lines))
	for _, in := range lines {
		l := r.Line(in.ItemID)
		if l == nil {
			return nil, shared.NewValidationError("item %s is not on request %s", in.ItemID, r.Number)
		}
		if _, dup := out[in.ItemID]; dup {
			return nil, shared.NewValidationError("item %s appears more than once", in.ItemID)
		}
		qty := valueobject.RoundQuantity(in.Quantity)
		if err := check(l, qty); err != nil {
			return nil, err
		}
		out[in.ItemID] = qty
	}
	return out, nil
}

// NotifyTarget returns who owns the next step at a stage: either roles, or the requester
func NotifyTarget(stage Stage) (roles []Role, requester bool) {
	switch stage {
	case StageARMApproval:
		return []Role{RoleARM}, false
	case StageStoresManagerApproval:
		return []Role{RoleStoresManager}, false
	case StageOSPManagerApproval:
		return []Role{RoleOSPManager}, false
	case StageProcurement:
		return []Role{RoleProcurementOfficer}, false
	case StageMainStoreRelease:
		return []Role{RoleMainStoreKeeper}, false
	}
	return nil, true
}
