// Package repository provides the persistence gateway: per-entity repositories
// over GORM and a transaction runner that scopes them to one unit of work.
package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Tx exposes repositories bound to a single database transaction.
type Tx interface {
	Users() UserRepository
	Threads() ThreadRepository
	Replies() ReplyRepository
	Likes() LikeRepository
}

// Gateway is the entry point to persistence. Outside RunTransaction its
// repositories run each statement in its own implicit transaction.
type Gateway interface {
	Tx
	// RunTransaction commits when fn returns nil and rolls back otherwise.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

type repoSet struct {
	users   UserRepository
	threads ThreadRepository
	replies ReplyRepository
	likes   LikeRepository
}

func newRepoSet(db *gorm.DB, rdb *redis.Client) *repoSet {
	return &repoSet{
		users:   NewUserRepository(db, rdb),
		threads: NewThreadRepository(db),
		replies: NewReplyRepository(db),
		likes:   NewLikeRepository(db),
	}
}

func (s *repoSet) Users() UserRepository     { return s.users }
func (s *repoSet) Threads() ThreadRepository { return s.threads }
func (s *repoSet) Replies() ReplyRepository  { return s.replies }
func (s *repoSet) Likes() LikeRepository     { return s.likes }

type gateway struct {
	*repoSet
	db  *gorm.DB
	rdb *redis.Client
}

// NewGateway returns a Gateway over db. rdb may be nil, which disables the user profile cache.
func NewGateway(db *gorm.DB, rdb *redis.Client) Gateway {
	return &gateway{
		repoSet: newRepoSet(db, rdb),
		db:      db,
		rdb:     rdb,
	}
}

func (g *gateway) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepoSet(tx, g.rdb))
	})
}
