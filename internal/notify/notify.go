package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/mailbar/internal/model"
	"github.com/nhle/mailbar/internal/store"
)

// namespace scopes notification IDs derived from message IDs.
var namespace = uuid.MustParse("6f1c7f3e-5b7a-4d55-9a43-0e3c2b1d8a90")

// IDFor returns the notification ID for a provider message. The same
// message always maps to the same ID, so raising it again replaces the
// earlier notification.
func IDFor(messageID string) string {
	return uuid.NewSHA1(namespace, []byte(messageID)).String()
}

// Notifier raises a user-visible notification.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// StoreNotifier records notifications in the notification store, where
// the toolbar UI picks them up, and logs each one.
type StoreNotifier struct {
	store store.Store
	log   zerolog.Logger
}

// NewStoreNotifier returns a StoreNotifier writing to s.
func NewStoreNotifier(s store.Store, log zerolog.Logger) *StoreNotifier {
	return &StoreNotifier{store: s, log: log}
}

// Notify upserts n keyed by its ID.
func (s *StoreNotifier) Notify(ctx context.Context, n model.Notification) error {
	if err := s.store.UpsertNotification(ctx, n); err != nil {
		return err
	}
	s.log.Info().
		Str("id", n.ID).
		Str("message_id", n.MessageID).
		Str("title", n.Title).
		Msg("new mail")
	return nil
}
