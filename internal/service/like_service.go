package service

import (
	"context"

	"circle/internal/models"
	"circle/internal/notifications"
	"circle/internal/observability"
	"circle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// LikeService flips the like state of a (user, thread) pair.
type LikeService struct {
	gateway     repository.Gateway
	broadcaster notifications.Broadcaster
	order       threadLocks
}

func NewLikeService(gateway repository.Gateway, broadcaster notifications.Broadcaster) *LikeService {
	return &LikeService{gateway: gateway, broadcaster: broadcaster}
}

// Toggle likes the thread if the user has not, and unlikes it otherwise.
// The thread row is locked for the duration of the transaction so the count
// computed after the mutation is the count at commit, and that count is what
// gets broadcast. Toggles on one thread are ordered from transaction start to
// publish, so subscribers see counts in commit order.
func (s *LikeService) Toggle(ctx context.Context, userID, threadID uint) (*models.LikeResult, error) {
	span, ctx := observability.NewSpan(ctx, "LikeService.Toggle")
	defer span.End()
	span.AddAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("thread.id", int64(threadID)),
	)

	unlock := s.order.lock(threadID)
	defer unlock()

	result := &models.LikeResult{ThreadID: threadID}
	err := s.gateway.RunTransaction(ctx, func(tx repository.Tx) error {
		if _, err := tx.Threads().LockForUpdate(ctx, threadID); err != nil {
			return err
		}

		liked, err := tx.Likes().Exists(ctx, userID, threadID)
		if err != nil {
			return err
		}
		if liked {
			if _, err := tx.Likes().Delete(ctx, userID, threadID); err != nil {
				return err
			}
		} else if err := tx.Likes().Insert(ctx, userID, threadID); err != nil {
			return err
		}
		result.IsLiked = !liked

		count, err := tx.Likes().CountByThread(ctx, threadID)
		if err != nil {
			return err
		}
		result.LikesCount = count
		return nil
	})
	if err != nil {
		span.SetError(err)
		if repository.IsConstraintViolation(err, repository.ConstraintForeignKey) {
			// The thread row is locked, so only the user can be missing.
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, conflictOr(err, "Like state changed concurrently, retry")
	}

	state := "unliked"
	if result.IsLiked {
		state = "liked"
	}
	observability.LikeTogglesTotal.WithLabelValues(state).Inc()

	s.broadcaster.PublishLikeUpdate(ctx, threadID, result.LikesCount)
	return result, nil
}
