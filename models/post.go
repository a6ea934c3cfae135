package models

import "time"

// Media types recorded on a post.
const (
	MediaTypeNone  = "none"
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Post is a campus feed entry with optional image or video media.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Author    string    `gorm:"size:128" json:"author"`
	Content   string    `gorm:"type:text" json:"content"`
	Campus    string    `gorm:"size:128;index" json:"campus"`
	MediaURL  *string   `gorm:"size:1024" json:"media_url"`
	MediaType string    `gorm:"size:16;default:'none'" json:"media_type"`
	CreatedAt time.Time `json:"created_at"`
}

// PostLike marks that a user liked a post. At most one row exists per (post, user).
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like_post_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostComment is a reply to a post. UserName is copied from the commenter, not referenced.
type PostComment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"index;not null" json:"post_id"`
	UserName    string    `gorm:"size:128" json:"user_name"`
	CommentText string    `gorm:"type:text" json:"comment_text"`
	CreatedAt   time.Time `json:"created_at"`
}
