package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"circle/internal/models"
	"circle/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRepository_ListAnnotatesForViewer(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	repo := NewThreadRepository(db)
	likes := NewLikeRepository(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	older := testutil.CreateThread(t, db, alice.ID, "first")
	newer := testutil.CreateThread(t, db, bob.ID, "second")

	require.NoError(t, likes.Insert(ctx, alice.ID, older.ID))
	require.NoError(t, likes.Insert(ctx, bob.ID, older.ID))
	require.NoError(t, repo.IncrementReplies(ctx, newer.ID))

	views, err := repo.List(ctx, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, "bob", views[0].Author.Username)
	assert.Equal(t, int64(0), views[0].LikesCount)
	assert.Equal(t, int64(1), views[0].RepliesCount)
	assert.False(t, views[0].IsLiked)

	assert.Equal(t, older.ID, views[1].ID)
	assert.Equal(t, alice.ID, views[1].Author.ID)
	assert.Equal(t, int64(2), views[1].LikesCount)
	assert.True(t, views[1].IsLiked)

	anonymous, err := repo.List(ctx, 0, 1, 0)
	require.NoError(t, err)
	require.Len(t, anonymous, 1)
	assert.False(t, anonymous[0].IsLiked)

	page, err := repo.List(ctx, alice.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, older.ID, page[0].ID)
	assert.True(t, page[0].IsLiked)
}

func TestThreadRepository_GetView(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	repo := NewThreadRepository(db)

	author := testutil.CreateUser(t, db, "carol")
	thread := testutil.CreateThread(t, db, author.ID, "hi")

	view, err := repo.GetView(ctx, thread.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", view.Content)
	assert.Equal(t, models.PublicUser{
		ID:           author.ID,
		Username:     "carol",
		FullName:     author.FullName,
		PhotoProfile: author.PhotoProfile,
	}, view.Author)

	_, err = repo.GetView(ctx, 999, author.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestThreadRepository_IncrementRepliesMissingThread(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewThreadRepository(db)

	err := repo.IncrementReplies(context.Background(), 404)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestThreadRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	repo := NewThreadRepository(db)

	author := testutil.CreateUser(t, db, "dave")
	thread := testutil.CreateThread(t, db, author.ID, "draft")

	thread.Content = "final"
	require.NoError(t, repo.Update(ctx, thread))

	stored, err := repo.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", stored.Content)

	require.NoError(t, repo.Delete(ctx, thread.ID))
	_, err = repo.GetByID(ctx, thread.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.True(t, models.HasCode(repo.Delete(ctx, thread.ID), models.CodeNotFound))
}

func TestThreadRepository_LockForUpdate_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewThreadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "threads" WHERE "threads"."id" = $1 ORDER BY "threads"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "created_by", "number_of_replies"}).
			AddRow(7, "locked", 1, 3))

	thread, err := repo.LockForUpdate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, thread.NumberOfReplies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadRepository_List_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewThreadRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT threads.id`)).
		WillReturnError(errors.New("connection timeout"))

	views, err := repo.List(context.Background(), 1, 10, 0)
	assert.Error(t, err)
	assert.Nil(t, views)
	assert.NoError(t, mock.ExpectationsWereMet())
}
