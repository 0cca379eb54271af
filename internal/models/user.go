// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account in the Circle application.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Password     string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"size:100" json:"full_name"`
	PhotoProfile string    `json:"photo_profile"`
	Bio          string    `gorm:"type:text" json:"bio"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the projection of a User that is safe to embed in threads,
// replies and realtime events.
type PublicUser struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	PhotoProfile string `json:"photo_profile"`
}

// Public returns the public projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		FullName:     u.FullName,
		PhotoProfile: u.PhotoProfile,
	}
}

// Profile is what a user sees about themselves.
type Profile struct {
	PublicUser
	Email string `json:"email"`
	Bio   string `json:"bio"`
}

// Profile returns the self-view of u.
func (u *User) Profile() Profile {
	return Profile{PublicUser: u.Public(), Email: u.Email, Bio: u.Bio}
}
