package models

import (
	"time"
)

// Like represents a user's like on a thread.
// The combination of UserID and ThreadID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_thread" json:"user_id"`
	ThreadID  uint      `gorm:"not null;uniqueIndex:idx_likes_user_thread;index" json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`

	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Thread Thread `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
}

// LikeResult is the post-toggle state of a (user, thread) pair.
type LikeResult struct {
	ThreadID   uint  `json:"threadId"`
	IsLiked    bool  `json:"isLiked"`
	LikesCount int64 `json:"likesCount"`
}
