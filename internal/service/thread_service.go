package service

import (
	"context"

	"circle/internal/models"
	"circle/internal/notifications"
	"circle/internal/observability"
	"circle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ThreadService reads the annotated feed and owns thread writes.
type ThreadService struct {
	gateway     repository.Gateway
	broadcaster notifications.Broadcaster
}

type ListThreadsInput struct {
	ViewerID uint
	Limit    int
	Offset   int
}

type CreateThreadInput struct {
	AuthorID uint
	Content  string
	Image    *string
}

type UpdateThreadInput struct {
	ThreadID uint
	UserID   uint
	Content  string
	// Image replaces the stored image when non-nil.
	Image *string
}

func NewThreadService(gateway repository.Gateway, broadcaster notifications.Broadcaster) *ThreadService {
	return &ThreadService{gateway: gateway, broadcaster: broadcaster}
}

// ListThreads returns the feed newest first with counts and the viewer's like state.
func (s *ThreadService) ListThreads(ctx context.Context, in ListThreadsInput) ([]models.ThreadView, error) {
	if in.Offset < 0 {
		in.Offset = 0
	}
	return s.gateway.Threads().List(ctx, in.ViewerID, in.Limit, in.Offset)
}

func (s *ThreadService) GetThread(ctx context.Context, threadID, viewerID uint) (*models.ThreadView, error) {
	return s.gateway.Threads().GetView(ctx, threadID, viewerID)
}

// ListReplies returns up to limit replies newest first; limit <= 0 uses the default.
func (s *ThreadService) ListReplies(ctx context.Context, threadID uint, limit int) ([]models.ReplyView, error) {
	return s.gateway.Replies().ListByThread(ctx, threadID, limit)
}

// CreateThread stores a thread and broadcasts newThread once it is committed.
func (s *ThreadService) CreateThread(ctx context.Context, in CreateThreadInput) (*models.ThreadView, error) {
	span, ctx := observability.NewSpan(ctx, "ThreadService.CreateThread")
	defer span.End()
	span.AddAttributes(attribute.Int64("user.id", int64(in.AuthorID)))

	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	thread := &models.Thread{
		Content:   content,
		Image:     normalizeImage(in.Image),
		CreatedBy: in.AuthorID,
	}
	if err := s.gateway.Threads().Create(ctx, thread); err != nil {
		if repository.IsConstraintViolation(err, repository.ConstraintForeignKey) {
			return nil, models.NewNotFoundError("User", in.AuthorID)
		}
		span.SetError(err)
		return nil, err
	}
	observability.ContentCreatedTotal.WithLabelValues("thread").Inc()

	view, err := s.gateway.Threads().GetView(ctx, thread.ID, in.AuthorID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.broadcaster.PublishNewThread(ctx, *view)
	return view, nil
}

// UpdateThread edits a thread owned by the caller.
func (s *ThreadService) UpdateThread(ctx context.Context, in UpdateThreadInput) (*models.ThreadView, error) {
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	thread, err := s.gateway.Threads().GetByID(ctx, in.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.CreatedBy != in.UserID {
		return nil, models.NewForbiddenError("Not authorized to update this thread")
	}

	thread.Content = content
	if in.Image != nil {
		thread.Image = normalizeImage(in.Image)
	}
	if err := s.gateway.Threads().Update(ctx, thread); err != nil {
		return nil, err
	}

	return s.gateway.Threads().GetView(ctx, thread.ID, in.UserID)
}

// DeleteThread removes a thread owned by the caller along with its likes and
// replies in one transaction. The deleted row is returned so stored files can be released.
func (s *ThreadService) DeleteThread(ctx context.Context, threadID, userID uint) (*models.Thread, error) {
	span, ctx := observability.NewSpan(ctx, "ThreadService.DeleteThread")
	defer span.End()

	var deleted *models.Thread
	err := s.gateway.RunTransaction(ctx, func(tx repository.Tx) error {
		thread, err := tx.Threads().LockForUpdate(ctx, threadID)
		if err != nil {
			return err
		}
		if thread.CreatedBy != userID {
			return models.NewForbiddenError("Not authorized to delete this thread")
		}
		if err := tx.Likes().DeleteByThread(ctx, threadID); err != nil {
			return err
		}
		if err := tx.Replies().DeleteByThread(ctx, threadID); err != nil {
			return err
		}
		if err := tx.Threads().Delete(ctx, threadID); err != nil {
			return err
		}
		deleted = thread
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return deleted, nil
}
