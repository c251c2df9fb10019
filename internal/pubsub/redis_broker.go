package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"familyphotos/internal/schema"
)

// DefaultChannel carries change events between server instances
const DefaultChannel = "familyphotos:changes"

// RedisBroker publishes change events on a Redis channel so that every
// instance's Hub sees mutations made on any instance
type RedisBroker struct {
	client  *goredis.Client
	channel string
	logger  *zap.Logger
}

// NewClient parses a redis:// URL into a client
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// NewRedisBroker creates a broker on channel, or DefaultChannel when empty
func NewRedisBroker(client *goredis.Client, channel string, logger *zap.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{client: client, channel: channel, logger: logger}
}

// Publish sends change to every subscribed instance, including this one
func (b *RedisBroker) Publish(ctx context.Context, change schema.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Run subscribes to the channel and dispatches every event until ctx is done.
// ready, if not nil, is closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, dispatcher schema.Dispatcher, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var change schema.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("dropping malformed change event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			dispatcher.Dispatch(change)
		}
	}
}
