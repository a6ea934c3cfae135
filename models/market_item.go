package models

import "time"

// MarketItem is a marketplace listing. There is no sold state.
type MarketItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255" json:"name"`
	Price       float64   `gorm:"type:decimal(10,2)" json:"price"`
	Description string    `gorm:"type:text" json:"description"`
	Seller      string    `gorm:"size:128" json:"seller"`
	Campus      string    `gorm:"size:128" json:"campus"`
	ImageURL    *string   `gorm:"size:1024" json:"image_url"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
