package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/mailbar/internal/model"
	"github.com/nhle/mailbar/internal/store"
)

// NewTestStore returns an in-memory notification store with migrations
// applied, closed when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Notification builds an unread notification for message "msg-<id>".
func Notification(id string, created time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		MessageID: "msg-" + id,
		Title:     "Title " + id,
		Message:   "Message " + id,
		CreatedAt: created,
	}
}

// SeedNotifications upserts ns into s, failing the test on error.
func SeedNotifications(t *testing.T, s store.Store, ns ...model.Notification) {
	t.Helper()

	for _, n := range ns {
		if err := s.UpsertNotification(context.Background(), n); err != nil {
			t.Fatalf("seeding notification %s: %v", n.ID, err)
		}
	}
}
