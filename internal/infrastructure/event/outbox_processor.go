package event

import (
	"context"
	"sync"
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// pollLockKey names the cluster-wide lock guarding one polling round
const pollLockKey = "stockledger:outbox:poll"

// PollLocker grants one replica at a time the right to poll the outbox.
// TryLock returns ok=false without error when another holder has the lock.
type PollLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// OutboxProcessorConfig tunes polling and retention of delivered entries
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	PollLockTTL      time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig polls every 5s and keeps sent entries for a week
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		PollLockTTL:      30 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor moves committed outbox entries onto the event bus.
// Delivery is at-least-once: a failed publish is retried with backoff until
// the entry runs out of attempts and lands in the dead-letter set.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	locker     PollLocker
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewOutboxProcessor wires a processor; locker may be nil on a single replica
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	locker PollLocker,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		locker:     locker,
		config:     config,
		logger:     logger.Named("outbox"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the polling loop and, when enabled, the retention loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.stop = context.WithCancel(ctx)

	p.every(ctx, p.config.PollInterval, func(ctx context.Context) { p.ProcessOnce(ctx) })
	if p.config.CleanupEnabled {
		p.every(ctx, p.config.CleanupInterval, p.cleanup)
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("distributed_lock", p.locker != nil),
	)
	return nil
}

// Stop cancels the loops and waits for an in-flight round, bounded by ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.stop != nil {
		p.stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// ProcessOnce delivers one batch of pending entries followed by one batch of
// due retries, and returns how many entries were marked sent.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) int {
	if p.locker != nil {
		release, ok, err := p.locker.TryLock(ctx, pollLockKey, p.config.PollLockTTL)
		if err != nil {
			p.logger.Warn("outbox poll lock unavailable, skipping round", zap.Error(err))
			return 0
		}
		if !ok {
			return 0
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				p.logger.Debug("failed to release outbox poll lock", zap.Error(err))
			}
		}()
	}

	sources := []struct {
		name string
		find func() ([]*shared.OutboxEntry, error)
	}{
		{"pending", func() ([]*shared.OutboxEntry, error) { return p.repo.FindPending(ctx, p.config.BatchSize) }},
		{"retryable", func() ([]*shared.OutboxEntry, error) { return p.repo.FindRetryable(ctx, p.now(), p.config.BatchSize) }},
	}

	sent := 0
	for _, src := range sources {
		entries, err := src.find()
		if err != nil {
			p.logger.Error("failed to load outbox entries", zap.String("source", src.name), zap.Error(err))
			return sent
		}
		sent += p.deliverBatch(ctx, entries)
	}
	return sent
}

func (p *OutboxProcessor) deliverBatch(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Int("count", len(ids)), zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range claimed {
		if p.deliver(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.bus.Publish(ctx, event)
	}
	if err != nil {
		entry.MarkFailed(err.Error())
		if entry.IsDead() {
			log.Warn("event moved to dead letter queue",
				zap.String("aggregate_type", entry.AggregateType),
				zap.String("aggregate_id", entry.AggregateID.String()),
				zap.Int("retry_count", entry.RetryCount),
				zap.Error(err),
			)
		} else {
			log.Error("event delivery failed", zap.Int("retry_count", entry.RetryCount), zap.Error(err))
		}
		if uerr := p.repo.Update(ctx, entry); uerr != nil {
			log.Error("failed to record delivery failure", zap.Error(uerr))
		}
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("failed to mark entry as sent", zap.Error(err))
		return false
	}
	log.Debug("event delivered")
	return true
}

// cleanup removes sent entries older than the retention window
func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
