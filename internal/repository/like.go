package repository

import (
	"context"
	"fmt"

	"circle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines persistence operations for likes.
type LikeRepository interface {
	Exists(ctx context.Context, userID, threadID uint) (bool, error)
	// Insert creates the (user, thread) pair; a duplicate surfaces as a unique ConstraintViolation.
	Insert(ctx context.Context, userID, threadID uint) error
	// Delete removes the pair and reports whether a row existed.
	Delete(ctx context.Context, userID, threadID uint) (bool, error)
	CountByThread(ctx context.Context, threadID uint) (int64, error)
	DeleteByThread(ctx context.Context, threadID uint) error
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a LikeRepository over db.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Exists(ctx context.Context, userID, threadID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return count > 0, nil
}

func (r *likeRepository) Insert(ctx context.Context, userID, threadID uint) error {
	like := models.Like{UserID: userID, ThreadID: threadID}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&like).Error; err != nil {
		return classify(err)
	}
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, userID, threadID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Delete(&models.Like{})
	if result.Error != nil {
		return false, classify(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *likeRepository) CountByThread(ctx context.Context, threadID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count likes for thread %d: %w", threadID, err)
	}
	return count, nil
}

func (r *likeRepository) DeleteByThread(ctx context.Context, threadID uint) error {
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&models.Like{}).Error; err != nil {
		return classify(err)
	}
	return nil
}
