// Package testutil provides shared database fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"

	"circle/internal/database"
	"circle/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema.
// The pool is pinned to one connection so concurrent tests serialize like SQLite writers do.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a unique email derived from username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$placeholderplaceholderplaceholderplaceholderplacehold",
		FullName: username + " tester",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateThread inserts a thread authored by userID.
func CreateThread(t *testing.T, db *gorm.DB, userID uint, content string) *models.Thread {
	t.Helper()

	thread := &models.Thread{Content: content, CreatedBy: userID}
	require.NoError(t, db.Omit("Author").Create(thread).Error)
	return thread
}
