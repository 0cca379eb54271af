package repository

import (
	"context"
	"fmt"

	"circle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRepliesLimit bounds ListByThread when the caller passes no limit.
const DefaultRepliesLimit = 25

// ReplyRepository defines persistence operations for replies.
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	ListByThread(ctx context.Context, threadID uint, limit int) ([]models.ReplyView, error)
	CountByThread(ctx context.Context, threadID uint) (int64, error)
	DeleteByThread(ctx context.Context, threadID uint) error
}

type replyRepository struct {
	db *gorm.DB
}

// NewReplyRepository returns a ReplyRepository over db.
func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db}
}

// Create inserts the reply and loads its author.
func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(reply).Error; err != nil {
		return classify(err)
	}
	if err := db.Omit("password").First(&reply.Author, reply.CreatedBy).Error; err != nil {
		return fmt.Errorf("load reply author: %w", err)
	}
	return nil
}

func (r *replyRepository) ListByThread(ctx context.Context, threadID uint, limit int) ([]models.ReplyView, error) {
	if limit <= 0 {
		limit = DefaultRepliesLimit
	}

	var replies []models.Reply
	err := r.db.WithContext(ctx).
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Omit("password")
		}).
		Where("thread_id = ?", threadID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&replies).Error
	if err != nil {
		return nil, fmt.Errorf("list replies for thread %d: %w", threadID, err)
	}

	views := make([]models.ReplyView, 0, len(replies))
	for i := range replies {
		views = append(views, replies[i].View())
	}
	return views, nil
}

func (r *replyRepository) CountByThread(ctx context.Context, threadID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Reply{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count replies for thread %d: %w", threadID, err)
	}
	return count, nil
}

func (r *replyRepository) DeleteByThread(ctx context.Context, threadID uint) error {
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&models.Reply{}).Error; err != nil {
		return classify(err)
	}
	return nil
}
