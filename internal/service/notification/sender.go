// internal/service/notification/sender.go
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"qrconnect-service/internal/domain/notification"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sender hands a message to the outbound notification pipeline. Delivery is
// someone else's problem; reconciliation only enqueues.
type Sender interface {
	Enqueue(ctx context.Context, msg notification.Message) error
}

// RedisSender pushes messages onto a redis list consumed by the delivery
// worker.
type RedisSender struct {
	client *redis.Client
	queue  string
}

func NewRedisSender(client *redis.Client, queue string) *RedisSender {
	return &RedisSender{client: client, queue: queue}
}

func (s *RedisSender) Enqueue(ctx context.Context, msg notification.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := s.client.LPush(ctx, s.queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// FireAndForget enqueues and only logs failures, so callers on the webhook
// path never block or fail on notification trouble.
func FireAndForget(ctx context.Context, sender Sender, logger *zap.Logger, msg notification.Message) {
	if sender == nil {
		return
	}
	if err := sender.Enqueue(ctx, msg); err != nil {
		logger.Warn("failed to enqueue notification",
			zap.String("template", msg.Template),
			zap.String("recipient", msg.Recipient),
			zap.Error(err),
		)
	}
}
