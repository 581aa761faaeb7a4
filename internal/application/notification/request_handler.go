package notification

import (
	"context"
	"fmt"

	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// StockRequestHandler routes workflow events to the roles that own the next stage
type StockRequestHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewStockRequestHandler creates a new StockRequestHandler
func NewStockRequestHandler(notifier Notifier, logger *zap.Logger) *StockRequestHandler {
	return &StockRequestHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *StockRequestHandler) EventTypes() []string {
	return []string{
		requisition.EventTypeStockRequestCreated,
		requisition.EventTypeStockRequestTransitioned,
	}
}

// Handle sends the notification. Notifier errors are logged and swallowed.
func (h *StockRequestHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		notifications []Notification
		number        string
	)
	switch e := event.(type) {
	case *requisition.StockRequestCreatedEvent:
		number = e.RequestNumber
		notifications = h.build(e.RequestNumber, e.RequesterID, e.Stage, e.NotifyRoles, e.NotifyRequester,
			fmt.Sprintf("Stock request %s", e.RequestNumber),
			fmt.Sprintf("Stock request %s was raised and awaits %s", e.RequestNumber, e.Stage))
	case *requisition.StockRequestTransitionedEvent:
		number = e.RequestNumber
		message := fmt.Sprintf("Stock request %s moved from %s to %s (%s)", e.RequestNumber, e.FromStage, e.ToStage, e.Action)
		if e.Comment != "" {
			message += ": " + e.Comment
		}
		notifications = h.build(e.RequestNumber, e.RequesterID, e.ToStage, e.NotifyRoles, e.NotifyRequester,
			fmt.Sprintf("Stock request %s %s", e.RequestNumber, e.Status), message)
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	for _, n := range notifications {
		if err := h.notifier.Notify(ctx, n); err != nil {
			h.logger.Warn("stock request notification failed",
				zap.String("request_number", number),
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (h *StockRequestHandler) build(number, requesterID string, stage requisition.Stage, roles []requisition.Role, requester bool, title, message string) []Notification {
	link := "/stock-requests/" + number
	var out []Notification
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		out = append(out, Notification{Roles: names, Title: title, Message: message, Link: link})
	}
	if requester && requesterID != "" {
		out = append(out, Notification{UserID: requesterID, Title: title, Message: message, Link: link})
	}
	if len(out) == 0 {
		h.logger.Debug("no notification target", zap.String("request_number", number), zap.String("stage", string(stage)))
	}
	return out
}
