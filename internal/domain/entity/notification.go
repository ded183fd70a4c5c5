package entity

import "time"

// Notification is a per-user copy of an event for the inbox feed.
type Notification struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	EventID     int64      `json:"event_id"`
	RequestID   int64      `json:"request_id"`
	EventType   string     `json:"event_type"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// IsRead reports whether the user has acknowledged the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
