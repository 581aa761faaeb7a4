package event

import (
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
)

// RegisterAllEvents registers every domain event type with the serializer.
// The outbox processor cannot deliver an event type that is missing here.
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(inventory.EventTypeStockReceived, &inventory.StockReceivedEvent{})
	serializer.Register(inventory.EventTypeInventoryChanged, &inventory.InventoryChangedEvent{})

	serializer.Register(requisition.EventTypeStockRequestCreated, &requisition.StockRequestCreatedEvent{})
	serializer.Register(requisition.EventTypeStockRequestTransitioned, &requisition.StockRequestTransitionedEvent{})
}
