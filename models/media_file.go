package models

import "time"

// MediaFile records a stored upload. ReclaimAt is set once nothing references the file anymore.
type MediaFile struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	FilePath    string     `gorm:"size:1024;not null" json:"file_path"` // filesystem path inside the upload dir
	URL         string     `gorm:"size:1024;not null;index" json:"url"` // public URL like /uploads/...
	ContentType string     `gorm:"size:128" json:"content_type"`
	ReclaimAt   *time.Time `gorm:"index" json:"reclaim_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

