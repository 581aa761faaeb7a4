package notification

import (
	"context"
	"fmt"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// StockReceivedHandler tells the requester that goods for their request arrived
type StockReceivedHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewStockReceivedHandler creates a new StockReceivedHandler
func NewStockReceivedHandler(notifier Notifier, logger *zap.Logger) *StockReceivedHandler {
	return &StockReceivedHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *StockReceivedHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockReceived}
}

// Handle notifies the requester of a linked GRN; unlinked receipts are ignored
func (h *StockReceivedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*inventory.StockReceivedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s", inventory.EventTypeStockReceived, event.EventType())
	}
	if e.RequestID == nil || e.RequesterID == "" {
		return nil
	}
	n := Notification{
		UserID:  e.RequesterID,
		Title:   fmt.Sprintf("Goods received: %s", e.GRNNumber),
		Message: fmt.Sprintf("%d line(s) received from %s against your stock request", len(e.Lines), e.Source),
		Link:    "/stock-requests/" + e.RequestID.String(),
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Warn("goods receipt notification failed",
			zap.String("grn_number", e.GRNNumber),
			zap.Error(err),
		)
	}
	return nil
}

// InventoryChangedHandler fans ledger postings out to the change broadcaster
type InventoryChangedHandler struct {
	broadcaster ChangeBroadcaster
	logger      *zap.Logger
}

// NewInventoryChangedHandler creates a new InventoryChangedHandler
func NewInventoryChangedHandler(broadcaster ChangeBroadcaster, logger *zap.Logger) *InventoryChangedHandler {
	return &InventoryChangedHandler{broadcaster: broadcaster, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *InventoryChangedHandler) EventTypes() []string {
	return []string{inventory.EventTypeInventoryChanged}
}

// Handle broadcasts the change. Broadcast errors are logged and swallowed.
func (h *InventoryChangedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*inventory.InventoryChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s", inventory.EventTypeInventoryChanged, event.EventType())
	}
	change := Change{
		Owners: e.Owners,
		Items:  e.ItemIDs,
		Reason: fmt.Sprintf("%s %s", e.TransactionType, e.TransactionNumber),
	}
	if err := h.broadcaster.Broadcast(ctx, change); err != nil {
		h.logger.Warn("inventory change broadcast failed",
			zap.String("transaction", e.TransactionNumber),
			zap.Error(err),
		)
	}
	return nil
}
