package service

import (
	"context"

	"circle/internal/featureflags"
	"circle/internal/models"
	"circle/internal/notifications"
	"circle/internal/observability"
	"circle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ReplyService creates replies and keeps the thread's reply counter in step.
type ReplyService struct {
	gateway     repository.Gateway
	broadcaster notifications.Broadcaster
	flags       *featureflags.Manager
	order       threadLocks
}

type CreateReplyInput struct {
	ThreadID uint
	UserID   uint
	Content  string
	Image    *string
}

// NewReplyService builds the service. newReply is broadcast only when flags
// enable featureflags.ReplyBroadcast; a nil manager keeps it off.
func NewReplyService(gateway repository.Gateway, broadcaster notifications.Broadcaster, flags *featureflags.Manager) *ReplyService {
	return &ReplyService{gateway: gateway, broadcaster: broadcaster, flags: flags}
}

// CreateReply inserts the reply and increments number_of_replies in one
// transaction. A missing thread rolls both back and yields NOT_FOUND.
func (s *ReplyService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.ReplyView, error) {
	span, ctx := observability.NewSpan(ctx, "ReplyService.CreateReply")
	defer span.End()
	span.AddAttributes(
		attribute.Int64("user.id", int64(in.UserID)),
		attribute.Int64("thread.id", int64(in.ThreadID)),
	)

	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{
		Content:   content,
		Image:     normalizeImage(in.Image),
		ThreadID:  in.ThreadID,
		CreatedBy: in.UserID,
	}

	unlock := s.order.lock(in.ThreadID)
	defer unlock()

	var repliesCount int64
	err = s.gateway.RunTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.Replies().Create(ctx, reply); err != nil {
			if repository.IsConstraintViolation(err, repository.ConstraintForeignKey) {
				return models.NewNotFoundError("Thread", in.ThreadID)
			}
			return err
		}
		if err := tx.Threads().IncrementReplies(ctx, in.ThreadID); err != nil {
			return err
		}
		count, err := tx.Threads().RepliesCount(ctx, in.ThreadID)
		if err != nil {
			return err
		}
		repliesCount = count
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.ContentCreatedTotal.WithLabelValues("reply").Inc()

	view := reply.View()
	if s.flags.Enabled(featureflags.ReplyBroadcast, in.UserID) {
		s.broadcaster.PublishNewReply(ctx, in.ThreadID, view, repliesCount)
	}
	return &view, nil
}
