package models

import "time"

// Notification tells a user that another user (the actor) did something.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ActorID   uint      `gorm:"index;not null" json:"actor_id"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// NotificationView is a notification joined with the actor's display fields.
type NotificationView struct {
	Notification
	ActorName string  `gorm:"column:actorName" json:"actorName"`
	ActorPic  *string `gorm:"column:actorPic" json:"actorPic"`
}
