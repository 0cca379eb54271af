package models

import (
	"time"
)

// MaxContentLength is the longest thread or reply body accepted, in characters.
const MaxContentLength = 500

// Thread is a top-level post.
type Thread struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Content   string  `gorm:"type:text;not null" json:"content"`
	Image     *string `json:"image"`
	CreatedBy uint    `gorm:"not null;index" json:"created_by"`
	Author    User    `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	// NumberOfReplies is maintained by the reply transaction; never recomputed.
	NumberOfReplies int       `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ThreadView is a Thread annotated for a specific viewer.
type ThreadView struct {
	ID           uint       `json:"id"`
	Content      string     `json:"content"`
	Image        *string    `json:"image"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Author       PublicUser `json:"author"`
	LikesCount   int64      `json:"likes_count"`
	RepliesCount int64      `json:"replies_count"`
	IsLiked      bool       `json:"isLiked"`
}
