// Package notifications delivers realtime feed events to websocket clients.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"circle/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel is the Redis channel every instance relays to its clients.
const BroadcastChannel = "notifications:broadcast"

// Notifier publishes events into Redis and subscribes to them.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client makes it a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events go through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishBroadcast sends a payload to every instance.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// StartBroadcastSubscriber subscribes to BroadcastChannel and calls onMessage for
// every payload until ctx is cancelled. It returns once the subscription is confirmed.
func (n *Notifier) StartBroadcastSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}

	sub := n.rdb.Subscribe(ctx, BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", BroadcastChannel, err)
	}

	go relay(ctx, sub, onMessage)
	return nil
}

// relay drains sub until ctx ends or the subscription closes.
func relay(ctx context.Context, sub *redis.PubSub, onMessage func(string)) {
	defer func() { _ = sub.Close() }()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			deliver(onMessage, msg.Payload)
		}
	}
}

// deliver runs one callback; a panic is logged and the relay keeps going.
func deliver(onMessage func(string), payload string) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("broadcast handler panicked",
				slog.Any("panic", r),
				slog.Int("payload_bytes", len(payload)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	onMessage(payload)
}
