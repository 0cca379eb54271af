package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"circle/internal/config"
	"circle/internal/models"
	"circle/internal/service"
	"circle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewTestDB(t)
	uploads := service.NewUploadService(&config.Config{UploadDir: t.TempDir()})
	s := NewSeeder(db, uploads, 42)

	summary, err := s.Run(context.Background(), Options{
		NumUsers:   4,
		NumThreads: 6,
		MaxReplies: 3,
		LikeRatio:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Users)
	assert.Equal(t, 6, summary.Threads)

	var replies, likes int64
	require.NoError(t, db.Model(&models.Reply{}).Count(&replies).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(summary.Replies), replies)
	assert.Equal(t, int64(summary.Likes), likes)

	var threads []models.Thread
	require.NoError(t, db.Find(&threads).Error)
	for _, th := range threads {
		var n int64
		require.NoError(t, db.Model(&models.Reply{}).Where("thread_id = ?", th.ID).Count(&n).Error)
		assert.Equal(t, int(n), th.NumberOfReplies, "reply counter of thread %d", th.ID)
		assert.LessOrEqual(t, len([]rune(th.Content)), models.MaxContentLength)
	}

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	for _, u := range users {
		_, err := os.Stat(filepath.Join(uploads.Dir(), u.PhotoProfile))
		assert.NoError(t, err, "avatar for %s", u.Username)
	}
}

func TestSeeder_SeededPasswordLogsIn(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := NewSeeder(db, nil, 7)

	users, err := s.SeedUsers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PhotoProfile)

	_, err = s.users.Login(context.Background(), service.LoginInput{
		Email:    users[0].Email,
		Password: DefaultPassword,
	})
	assert.NoError(t, err)
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := NewSeeder(db, nil, 1)
	ctx := context.Background()

	_, err := s.Run(ctx, Options{NumUsers: 2, NumThreads: 2, MaxReplies: 1, LikeRatio: 1})
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	for _, model := range []any{&models.User{}, &models.Thread{}, &models.Reply{}, &models.Like{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
}
