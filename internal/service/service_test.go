package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"circle/internal/featureflags"
	"circle/internal/models"
	"circle/internal/notifications"
	"circle/internal/repository"
	"circle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// recordingBroadcaster captures published events in call order.
type recordingBroadcaster struct {
	mu      sync.Mutex
	threads []models.ThreadView
	likes   []notifications.LikeUpdate
	replies []notifications.NewReply
	// onLike runs before a like update is recorded.
	onLike func(likesCount int64)
}

var _ notifications.Broadcaster = (*recordingBroadcaster)(nil)

func (r *recordingBroadcaster) PublishNewThread(_ context.Context, thread models.ThreadView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads = append(r.threads, thread)
}

func (r *recordingBroadcaster) PublishLikeUpdate(_ context.Context, threadID uint, likesCount int64) {
	if r.onLike != nil {
		r.onLike(likesCount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = append(r.likes, notifications.LikeUpdate{ThreadID: threadID, NewLikeCount: likesCount})
}

func (r *recordingBroadcaster) PublishNewReply(_ context.Context, threadID uint, reply models.ReplyView, repliesCount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, notifications.NewReply{ThreadID: threadID, Reply: reply, RepliesCount: repliesCount})
}

func (r *recordingBroadcaster) likeCounts() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.likes))
	for _, l := range r.likes {
		out = append(out, l.NewLikeCount)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	gateway repository.Gateway
	events  *recordingBroadcaster
	threads *ThreadService
	likes   *LikeService
	replies *ReplyService
	users   *UserService
}

func newFixture(t *testing.T, flags string) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	gw := repository.NewGateway(db, nil)
	events := &recordingBroadcaster{}

	return &fixture{
		db:      db,
		gateway: gw,
		events:  events,
		threads: NewThreadService(gw, events),
		likes:   NewLikeService(gw, events),
		replies: NewReplyService(gw, events, featureflags.NewManager(flags)),
		users:   NewUserService(gw).WithBcryptCost(bcrypt.MinCost),
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestNormalizeContent(t *testing.T) {
	t.Parallel()

	got, err := normalizeContent("  hello \n")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = normalizeContent("   ")
	assertAppErrorCode(t, err, models.CodeValidation)

	// Multi-byte characters count once each.
	wide := ""
	for i := 0; i < models.MaxContentLength; i++ {
		wide += "é"
	}
	_, err = normalizeContent(wide)
	assert.NoError(t, err)
	_, err = normalizeContent(wide + "é")
	assertAppErrorCode(t, err, models.CodeValidation)
}
