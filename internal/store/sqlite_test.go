package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbar/internal/model"
	"github.com/nhle/mailbar/internal/store"
	"github.com/nhle/mailbar/tests/testutil"
)

func TestSQLiteStore_UpsertReplacesByID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpsertNotification(ctx, testutil.Notification("n1", now)))

	updated := testutil.Notification("n1", now)
	updated.Message = "second"
	require.NoError(t, s.UpsertNotification(ctx, updated))

	got, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "msg-n1", got[0].MessageID)
	assert.Equal(t, "second", got[0].Message)
	assert.False(t, got[0].Read)
	assert.True(t, now.Equal(got[0].CreatedAt), "created_at %v != %v", got[0].CreatedAt, now)
}

func TestSQLiteStore_UnreadNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	testutil.SeedNotifications(t, s,
		testutil.Notification("old", base.Add(-2*time.Hour)),
		testutil.Notification("new", base),
		testutil.Notification("mid", base.Add(-time.Hour)),
	)

	got, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestSQLiteStore_MarkNotificationRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	testutil.SeedNotifications(t, s, testutil.Notification("n1", now), testutil.Notification("n2", now))

	require.NoError(t, s.MarkNotificationRead(ctx, "n1"))
	require.NoError(t, s.MarkNotificationRead(ctx, "missing"))

	got, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n2", got[0].ID)
}

func TestSQLiteStore_DeleteNotificationsBefore(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	testutil.SeedNotifications(t, s,
		testutil.Notification("ancient", now.Add(-30*24*time.Hour)),
		testutil.Notification("stale", now.Add(-8*24*time.Hour)),
		testutil.Notification("fresh", now.Add(-time.Hour)),
	)

	removed, err := s.DeleteNotificationsBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	got, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ID)
}

func TestSQLiteStore_ZeroCreatedAtDefaultsToNow(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNotification(ctx, model.Notification{ID: "n1", MessageID: "m1", Title: "t"}))

	got, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, time.Minute)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailbar.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertNotification(ctx, testutil.Notification("n1", time.Now())))
	require.NoError(t, s.Close())

	// Migrations must be skipped on an up-to-date schema.
	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
}
