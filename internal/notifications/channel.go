package notifications

import (
	"context"
	"log/slog"

	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/observability"
)

// Broadcaster publishes post-commit state to connected clients.
// Delivery is best-effort; implementations never report failure to the caller.
type Broadcaster interface {
	PublishNewThread(ctx context.Context, thread models.ThreadView)
	PublishLikeUpdate(ctx context.Context, threadID uint, likesCount int64)
	PublishNewReply(ctx context.Context, threadID uint, reply models.ReplyView, repliesCount int64)
}

// Channel is the process-wide Broadcaster. With Redis every event is published
// once to the broadcast channel and each instance's hub relays it; without
// Redis events go straight to the local hub. When the local relay is not
// subscribed, or the publish fails, local clients are served directly, so each
// client receives an event through exactly one path.
type Channel struct {
	notifier *Notifier
	hub      *Hub
}

// NewChannel wires the channel to a notifier (possibly without Redis) and the local hub.
func NewChannel(notifier *Notifier, hub *Hub) *Channel {
	return &Channel{notifier: notifier, hub: hub}
}

func (c *Channel) PublishNewThread(ctx context.Context, thread models.ThreadView) {
	c.publish(ctx, EventNewThread, thread)
}

func (c *Channel) PublishLikeUpdate(ctx context.Context, threadID uint, likesCount int64) {
	c.publish(ctx, EventUpdateLike, LikeUpdate{ThreadID: threadID, NewLikeCount: likesCount})
}

func (c *Channel) PublishNewReply(ctx context.Context, threadID uint, reply models.ReplyView, repliesCount int64) {
	c.publish(ctx, EventNewReply, NewReply{ThreadID: threadID, Reply: reply, RepliesCount: repliesCount})
}

func (c *Channel) publish(ctx context.Context, eventType string, payload any) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		observability.BroadcastFailures.WithLabelValues(eventType, "encode").Inc()
		middleware.Logger.ErrorContext(ctx, "failed to encode realtime event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if c.notifier.Enabled() {
		err := c.notifier.PublishBroadcast(ctx, string(data))
		if err != nil {
			observability.BroadcastFailures.WithLabelValues(eventType, "redis").Inc()
			middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
				slog.String("type", eventType),
				slog.String("error", err.Error()),
			)
		} else {
			observability.BroadcastEventsTotal.WithLabelValues(eventType, "redis").Inc()
			if c.hub.RelayLive() {
				return
			}
		}
	}

	if c.hub != nil {
		c.hub.BroadcastAll(data)
		observability.BroadcastEventsTotal.WithLabelValues(eventType, "local").Inc()
	}
}
