package repository

import (
	"context"
	"errors"
	"fmt"

	"circle/internal/cache"
	"circle/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewUserRepository returns a UserRepository. A nil rdb disables the profile cache.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb}
}

// GetByID loads a user without the password hash, through the profile cache.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User

	err := cache.CacheAside(ctx, r.rdb, cache.UserProfileKey(id), &user, cache.UserProfileTTL, func() error {
		if err := r.db.WithContext(ctx).Omit("password").First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return fmt.Errorf("get user %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "email", email)
}

// GetByUsername returns (nil, nil) when the username is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findBy(ctx, "username", username)
}

// findBy loads the full row, hash included, matching column exactly.
func (r *userRepository) findBy(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(column+" = ?", value).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return classify(err)
	}
	return nil
}

// UpdateProfile writes the mutable profile columns and drops the cached copy.
func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).
		Model(user).
		Select("full_name", "bio", "photo_profile", "updated_at").
		Updates(user)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	cache.Invalidate(ctx, r.rdb, cache.UserProfileKey(user.ID))
	return nil
}
