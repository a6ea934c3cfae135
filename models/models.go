package models

// All returns every model managed by the store, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{}, &Post{}, &PostLike{}, &PostComment{}, &Message{},
		&Notification{}, &MarketItem{}, &CampusEvent{}, &MediaFile{},
	}
}
