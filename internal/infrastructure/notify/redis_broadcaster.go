package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldops/stockledger/internal/application/notification"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChangeChannel is the pub/sub channel that carries stock change signals
const DefaultChangeChannel = "stockledger:inventory:changed"

// Publisher is the slice of the go-redis client the broadcaster needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBroadcaster publishes stock change signals on a Redis channel so that
// every replica's websocket/SSE layer can refresh its views
type RedisBroadcaster struct {
	client  Publisher
	channel string
	logger  *zap.Logger
}

// NewRedisBroadcaster creates a broadcaster on channel (DefaultChangeChannel when empty)
func NewRedisBroadcaster(client Publisher, channel string, logger *zap.Logger) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	return &RedisBroadcaster{client: client, channel: channel, logger: logger}
}

// Broadcast implements notification.ChangeBroadcaster
func (b *RedisBroadcaster) Broadcast(ctx context.Context, change notification.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	receivers, err := b.client.Publish(ctx, b.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	b.logger.Debug("stock change broadcast",
		zap.String("channel", b.channel),
		zap.Int64("receivers", receivers),
		zap.String("reason", change.Reason),
	)
	return nil
}

// LogBroadcaster stands in for RedisBroadcaster when Redis is disabled
type LogBroadcaster struct {
	logger *zap.Logger
}

// NewLogBroadcaster creates a new LogBroadcaster
func NewLogBroadcaster(logger *zap.Logger) *LogBroadcaster {
	return &LogBroadcaster{logger: logger}
}

// Broadcast implements notification.ChangeBroadcaster
func (b *LogBroadcaster) Broadcast(ctx context.Context, change notification.Change) error {
	b.logger.Debug("stock change",
		zap.Int("owners", len(change.Owners)),
		zap.Int("items", len(change.Items)),
		zap.String("reason", change.Reason),
	)
	return nil
}

var (
	_ notification.ChangeBroadcaster = (*RedisBroadcaster)(nil)
	_ notification.ChangeBroadcaster = (*LogBroadcaster)(nil)
)
