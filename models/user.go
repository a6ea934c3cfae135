package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered campus member. Passwords are stored as bcrypt hashes only.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:128" json:"name"`
	Email      string    `gorm:"size:255;uniqueIndex:idx_users_email" json:"email"`
	Password   string    `gorm:"size:255" json:"-"`
	Campus     string    `gorm:"size:128" json:"campus"`
	Motto      string    `gorm:"size:255" json:"motto"`
	ProfilePic *string   `gorm:"size:512" json:"profile_pic"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hook ensures the timestamp is set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	return nil
}

// UserProfile is the public projection of a user; it never carries the password.
type UserProfile struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Campus     string  `json:"campus"`
	Motto      string  `json:"motto"`
	ProfilePic *string `json:"profile_pic"`
}

// Profile returns the password-free projection of u.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Campus:     u.Campus,
		Motto:      u.Motto,
		ProfilePic: u.ProfilePic,
	}
}
