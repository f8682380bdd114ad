package store

import (
	"context"
	"time"

	"github.com/nhle/mailbar/internal/model"
)

// Store defines the persistence interface for raised notifications.
type Store interface {
	// UpsertNotification inserts n, replacing any notification with the
	// same ID.
	UpsertNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// DeleteNotificationsBefore prunes notifications created before t and
	// returns how many were removed.
	DeleteNotificationsBefore(ctx context.Context, t time.Time) (int64, error)
}
