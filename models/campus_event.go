package models

import "time"

// CampusEvent is a dated event listed for one campus.
type CampusEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255" json:"title"`
	Location    string    `gorm:"size:255" json:"location"`
	EventDate   time.Time `gorm:"type:date" json:"event_date"`
	EventTime   string    `gorm:"size:32" json:"event_time"`
	Description string    `gorm:"type:text" json:"description"`
	Campus      string    `gorm:"size:128;index" json:"campus"`
	// Month and Day are display labels derived from EventDate, e.g. "Mar" and "05".
	Month string `gorm:"-" json:"month"`
	Day   string `gorm:"-" json:"day"`
}

// WithLabels fills Month and Day from EventDate.
func (e CampusEvent) WithLabels() CampusEvent {
	if !e.EventDate.IsZero() {
		e.Month = e.EventDate.Format("Jan")
		e.Day = e.EventDate.Format("02")
	}
	return e
}
