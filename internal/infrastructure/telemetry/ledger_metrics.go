package telemetry

import (
	"context"

	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics turns ledger and workflow events into OpenTelemetry counters.
// It subscribes to the event bus like any other handler.
type LedgerMetrics struct {
	transactions metric.Int64Counter
	received     metric.Float64Counter
	requests     metric.Int64Counter
	transitions  metric.Int64Counter
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	transactions, err := meter.Int64Counter("stockledger.ledger.transactions",
		metric.WithDescription("Posted ledger transactions"),
		metric.WithUnit("{transaction}"))
	if err != nil {
		return nil, err
	}
	received, err := meter.Float64Counter("stockledger.ledger.received_quantity",
		metric.WithDescription("Quantity brought in by goods receipts"),
		metric.WithUnit("{unit}"))
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter("stockledger.stock_requests.created",
		metric.WithDescription("Stock requests raised"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("stockledger.stock_requests.transitions",
		metric.WithDescription("Stock request workflow transitions"),
		metric.WithUnit("{transition}"))
	if err != nil {
		return nil, err
	}
	return &LedgerMetrics{
		transactions: transactions,
		received:     received,
		requests:     requests,
		transitions:  transitions,
	}, nil
}

// EventTypes returns the event types this handler is interested in
func (m *LedgerMetrics) EventTypes() []string {
	return []string{
		inventory.EventTypeInventoryChanged,
		inventory.EventTypeStockReceived,
		requisition.EventTypeStockRequestCreated,
		requisition.EventTypeStockRequestTransitioned,
	}
}

// Handle records the event. Unknown payloads are ignored.
func (m *LedgerMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *inventory.InventoryChangedEvent:
		m.transactions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("transaction_type", string(e.TransactionType))))
	case *inventory.StockReceivedEvent:
		for _, line := range e.Lines {
			m.received.Add(ctx, line.Quantity.InexactFloat64(), metric.WithAttributes(
				attribute.String("source", e.Source)))
		}
	case *requisition.StockRequestCreatedEvent:
		m.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source_type", string(e.SourceType))))
	case *requisition.StockRequestTransitionedEvent:
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", string(e.Action)),
			attribute.String("to_stage", string(e.ToStage)),
			attribute.String("status", string(e.Status)),
		))
	}
	return nil
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)
