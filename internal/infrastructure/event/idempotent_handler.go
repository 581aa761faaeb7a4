package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryStats counts what an IdempotentHandler did with the events it saw
type DeliveryStats struct {
	Handled    int64 `json:"handled"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// IdempotentHandler makes an at-least-once outbox look exactly-once to the
// wrapped handler. Keys are "event:<name>:<event id>", so when one of several
// subscribers fails and the entry is redelivered, subscribers that already
// succeeded skip it.
type IdempotentHandler struct {
	name    string
	next    shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger

	handled, duplicates, failed atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the key TTL and the on/off switch
func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.ttl = cfg.TTL
		h.enabled = cfg.Enabled
	}
}

// NewIdempotentHandler wraps next under the given subscriber name
func NewIdempotentHandler(name string, next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := shared.DefaultIdempotencyConfig()
	h := &IdempotentHandler{
		name:    name,
		next:    next,
		store:   store,
		ttl:     defaults.TTL,
		enabled: defaults.Enabled,
		logger:  logger.With(zap.String("handler", name)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name is the subscriber name used in idempotency keys
func (h *IdempotentHandler) Name() string { return h.name }

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// Handle forwards event unless this subscriber already handled it. A store
// outage fails open: a duplicate notification beats a lost one.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.enabled {
		return h.next.Handle(ctx, event)
	}

	key := h.key(event)
	fresh, err := h.store.MarkProcessed(ctx, key, h.ttl)
	switch {
	case err != nil:
		h.logger.Warn("idempotency store unavailable, handling event anyway",
			zap.String("event_id", event.EventID().String()), zap.Error(err))
	case !fresh:
		h.duplicates.Add(1)
		h.logger.Debug("skipping already handled event", zap.String("event_id", event.EventID().String()))
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		// release the key so the outbox retry reaches this handler again
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			h.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(ferr))
		}
		return err
	}
	h.handled.Add(1)
	return nil
}

// Stats returns a snapshot of the handler's counters
func (h *IdempotentHandler) Stats() DeliveryStats {
	return DeliveryStats{
		Handled:    h.handled.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

func (h *IdempotentHandler) key(event shared.DomainEvent) string {
	return "event:" + h.name + ":" + event.EventID().String()
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
