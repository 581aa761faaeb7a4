package notification

import (
	"context"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
)

// Notification is a fire-and-forget message for a set of roles and/or one user
type Notification struct {
	Roles   []string `json:"roles,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Link    string   `json:"link,omitempty"`
}

// Notifier delivers notifications. Delivery failures never roll back stock changes.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Change describes which owner/item stock views are stale
type Change struct {
	Owners []inventory.Owner `json:"owners"`
	Items  []uuid.UUID       `json:"items"`
	Reason string            `json:"reason"`
}

// ChangeBroadcaster signals connected clients that stock changed
type ChangeBroadcaster interface {
	Broadcast(ctx context.Context, change Change) error
}
