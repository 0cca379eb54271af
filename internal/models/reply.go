package models

import (
	"time"
)

// Reply is a response attached to exactly one thread.
type Reply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Image     *string   `json:"image"`
	ThreadID  uint      `gorm:"not null;index" json:"thread_id"`
	Thread    Thread    `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedBy uint      `gorm:"not null;index" json:"created_by"`
	Author    User      `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// ReplyView is a Reply with its author's public projection attached.
type ReplyView struct {
	ID        uint       `json:"id"`
	Content   string     `json:"content"`
	Image     *string    `json:"image"`
	ThreadID  uint       `json:"thread_id"`
	CreatedAt time.Time  `json:"created_at"`
	Author    PublicUser `json:"author"`
}

// View converts a reply with a loaded Author into its response shape.
func (r *Reply) View() ReplyView {
	return ReplyView{
		ID:        r.ID,
		Content:   r.Content,
		Image:     r.Image,
		ThreadID:  r.ThreadID,
		CreatedAt: r.CreatedAt,
		Author:    r.Author.Public(),
	}
}
