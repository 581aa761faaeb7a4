// Package notify implements the notification ports: a structured-log notifier
// and a Redis pub/sub broadcaster for stock change signals.
package notify

import (
	"context"

	"github.com/fieldops/stockledger/internal/application/notification"
	"github.com/fieldops/stockledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogNotifier writes every notification as a structured log line.
// Deployments ship the log stream to whatever delivers messages to people.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(l *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: l.Named("notify")}
}

// Notify implements notification.Notifier
func (n *LogNotifier) Notify(ctx context.Context, msg notification.Notification) error {
	logger.Enrich(ctx, n.logger).Info("notification",
		zap.Strings("roles", msg.Roles),
		zap.String("user_id", msg.UserID),
		zap.String("title", msg.Title),
		zap.String("message", msg.Message),
		zap.String("link", msg.Link),
	)
	return nil
}

var _ notification.Notifier = (*LogNotifier)(nil)
