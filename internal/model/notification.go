package model

import "time"

// Notification is a desktop alert raised for a newly arrived message.
type Notification struct {
	// ID is derived from MessageID so that re-raising the same message
	// replaces the earlier alert instead of duplicating it.
	ID string `json:"id" db:"id"`

	// MessageID links the notification to the provider message.
	MessageID string `json:"messageId" db:"message_id"`

	// Title is the sender's display name.
	Title string `json:"title" db:"title"`

	// Message is the subject, or the snippet when the subject is empty.
	Message string `json:"message" db:"message"`

	// Read indicates whether the user has dismissed this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when this notification was raised.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
