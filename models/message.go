package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Message is one direct chat message. Rows are immutable once written.
type Message struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Sender    Identifier `gorm:"size:64;index:idx_messages_pair" json:"sender"`
	Receiver  Identifier `gorm:"size:64;index:idx_messages_pair" json:"receiver"`
	Message   string     `gorm:"type:text" json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// Identifier is an opaque participant reference. Clients may send it as a JSON
// number or string; it is always stored and returned as a string.
type Identifier string

// UnmarshalJSON accepts numbers, strings and null.
func (id *Identifier) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = Identifier(n.String())
	return nil
}
