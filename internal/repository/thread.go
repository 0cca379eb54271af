package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"circle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRepository defines persistence operations for threads.
type ThreadRepository interface {
	// List returns threads newest first, annotated for viewerID. limit <= 0 means no limit.
	List(ctx context.Context, viewerID uint, limit, offset int) ([]models.ThreadView, error)
	GetView(ctx context.Context, id, viewerID uint) (*models.ThreadView, error)
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	// LockForUpdate reads the thread row with SELECT ... FOR UPDATE.
	LockForUpdate(ctx context.Context, id uint) (*models.Thread, error)
	Create(ctx context.Context, thread *models.Thread) error
	Update(ctx context.Context, thread *models.Thread) error
	Delete(ctx context.Context, id uint) error
	// IncrementReplies bumps number_of_replies by one; NotFound if the row is gone.
	IncrementReplies(ctx context.Context, id uint) error
	RepliesCount(ctx context.Context, id uint) (int64, error)
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository returns a ThreadRepository over db.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

// threadRow is the flat result of the aggregation query.
type threadRow struct {
	ID                 uint
	Content            string
	Image              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	AuthorID           uint
	AuthorUsername     string
	AuthorFullName     string
	AuthorPhotoProfile string
	LikesCount         int64
	RepliesCount       int64
	IsLiked            bool
}

func (row threadRow) view() models.ThreadView {
	return models.ThreadView{
		ID:        row.ID,
		Content:   row.Content,
		Image:     row.Image,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Author: models.PublicUser{
			ID:           row.AuthorID,
			Username:     row.AuthorUsername,
			FullName:     row.AuthorFullName,
			PhotoProfile: row.AuthorPhotoProfile,
		},
		LikesCount:   row.LikesCount,
		RepliesCount: row.RepliesCount,
		IsLiked:      row.IsLiked,
	}
}

// applyThreadDetails selects thread columns, the author projection, both
// counts and the viewer's like state in a single statement.
func (r *threadRepository) applyThreadDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "threads.id, threads.content, threads.image, threads.created_at, threads.updated_at, " +
		"users.id AS author_id, users.username AS author_username, " +
		"users.full_name AS author_full_name, users.photo_profile AS author_photo_profile, " +
		"threads.number_of_replies AS replies_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.thread_id = threads.id) AS likes_count"

	db = db.Table("threads").Joins("JOIN users ON users.id = threads.created_by")

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.thread_id = threads.id AND likes.user_id = ?) AS is_liked", viewerID)
	}

	return db.Select(selectQuery + ", false AS is_liked")
}

func (r *threadRepository) List(ctx context.Context, viewerID uint, limit, offset int) ([]models.ThreadView, error) {
	var rows []threadRow
	q := r.applyThreadDetails(r.db.WithContext(ctx), viewerID).
		Order("threads.created_at DESC").
		Order("threads.id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	views := make([]models.ThreadView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

func (r *threadRepository) GetView(ctx context.Context, id, viewerID uint) (*models.ThreadView, error) {
	var rows []threadRow
	err := r.applyThreadDetails(r.db.WithContext(ctx), viewerID).
		Where("threads.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get thread %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, models.NewNotFoundError("Thread", id)
	}
	view := rows[0].view()
	return &view, nil
}

func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *threadRepository) LockForUpdate(ctx context.Context, id uint) (*models.Thread, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *threadRepository) first(db *gorm.DB, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := db.First(&thread, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Thread", id)
		}
		return nil, fmt.Errorf("get thread %d: %w", id, err)
	}
	return &thread, nil
}

func (r *threadRepository) Create(ctx context.Context, thread *models.Thread) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(thread).Error; err != nil {
		return classify(err)
	}
	return nil
}

func (r *threadRepository) Update(ctx context.Context, thread *models.Thread) error {
	result := r.db.WithContext(ctx).
		Model(thread).
		Select("content", "image", "updated_at").
		Updates(thread)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", thread.ID)
	}
	return nil
}

func (r *threadRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Thread{}, id)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", id)
	}
	return nil
}

func (r *threadRepository) IncrementReplies(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ?", id).
		UpdateColumn("number_of_replies", gorm.Expr("number_of_replies + ?", 1))
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Thread", id)
	}
	return nil
}

func (r *threadRepository) RepliesCount(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Select("number_of_replies").
		Where("id = ?", id).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("replies count for thread %d: %w", id, err)
	}
	return count, nil
}
