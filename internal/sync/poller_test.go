package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbar/internal/gmail"
	"github.com/nhle/mailbar/internal/model"
	"github.com/nhle/mailbar/internal/notify"
)

type fakeLister struct {
	mu     gosync.Mutex
	pages  [][]model.Message
	calls  int
	opts   []gmail.ListOptions
	tokens []string
	err    error
	called chan struct{}
	onList func()
}

func (f *fakeLister) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
}

func (f *fakeLister) ListMessages(_ context.Context, opts gmail.ListOptions) (*model.MessagePage, error) {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		if f.onList != nil {
			f.onList()
		}
		if f.called != nil {
			f.called <- struct{}{}
		}
	}()

	f.opts = append(f.opts, opts)
	idx := f.calls
	f.calls++

	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return &model.MessagePage{}, nil
	}
	if idx >= len(f.pages) {
		idx = len(f.pages) - 1
	}
	return &model.MessagePage{Messages: f.pages[idx]}, nil
}

type fakeAuth struct {
	token   string
	err     error
	onToken func()
}

func (f *fakeAuth) Token(_ context.Context, interactive bool) (string, error) {
	if interactive {
		return "", errors.New("poller must not prompt")
	}
	if f.onToken != nil {
		f.onToken()
	}
	return f.token, f.err
}

type fakeSettings struct {
	settings model.Settings
}

func (f *fakeSettings) Get() model.Settings { return f.settings }

type fakeNotifier struct {
	mu   gosync.Mutex
	seen []model.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.seen = append(f.seen, n)
	return nil
}

func unread(ids ...string) []model.Message {
	msgs := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, model.Message{
			ID:      id,
			Snippet: "snippet " + id,
			Headers: map[string]string{"subject": "subject " + id},
			Sender:  model.Sender{Name: "Sender " + id, Email: id + "@example.com"},
		})
	}
	return msgs
}

func enabled() *fakeSettings {
	s := model.DefaultSettings()
	s.NotificationsEnabled = true
	return &fakeSettings{settings: s}
}

func newTestPoller(lister *fakeLister, auth *fakeAuth, settings *fakeSettings, n *fakeNotifier) *Poller {
	return New(lister, auth, settings, n, zerolog.Nop())
}

func TestPoller_FirstCycleIsBaseline(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{
		unread("a", "b", "c", "d", "e"),
		unread("f", "a", "b", "c", "d", "e"),
	}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Baseline)
	assert.Empty(t, notifier.seen)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.LastSeen())

	res, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Baseline)
	assert.Equal(t, 1, res.Notified)

	require.Len(t, notifier.seen, 1)
	n := notifier.seen[0]
	assert.Equal(t, notify.IDFor("f"), n.ID)
	assert.Equal(t, "f", n.MessageID)
	assert.Equal(t, "Sender f", n.Title)
	assert.Equal(t, "subject f", n.Message)
	assert.False(t, n.CreatedAt.IsZero())

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, p.LastSeen())
	assert.Equal(t, []string{"tok", "tok"}, lister.tokens)
}

func TestPoller_ListsUnreadOnly(t *testing.T) {
	lister := &fakeLister{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), &fakeNotifier{})

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, lister.opts, 1)
	assert.Equal(t, gmail.ListOptions{Filter: gmail.FilterUnread, MaxResults: 10}, lister.opts[0])
}

func TestPoller_SeenSetIsReplaced(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{
		unread("a", "b"),
		unread("b"),
		unread("a", "b"),
	}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)

	for i := 0; i < 3; i++ {
		_, err := p.RunCycle(context.Background())
		require.NoError(t, err)
	}

	// "a" dropped out of the unread set and came back, so it is new again.
	require.Len(t, notifier.seen, 1)
	assert.Equal(t, "a", notifier.seen[0].MessageID)
}

func TestPoller_SubjectFallsBackToSnippet(t *testing.T) {
	msg := model.Message{ID: "x", Snippet: "preview", Sender: model.Sender{Name: "Amy"}}

	n := notificationFor(msg)
	assert.Equal(t, "preview", n.Message)
	assert.Equal(t, "Amy", n.Title)
}

func TestPoller_SkipsWithoutToken(t *testing.T) {
	tests := []struct {
		name string
		auth *fakeAuth
	}{
		{name: "error", auth: &fakeAuth{err: errors.New("no token")}},
		{name: "empty", auth: &fakeAuth{}},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			lister := &fakeLister{pages: [][]model.Message{unread("a")}}
			p := newTestPoller(lister, tc.auth, enabled(), &fakeNotifier{})

			res, err := p.RunCycle(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Skipped)
			assert.Zero(t, lister.calls)
			assert.Empty(t, lister.tokens)
		})
	}
}

func TestPoller_SkipsWhenNotificationsDisabled(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a")}}
	settings := enabled()
	settings.settings.NotificationsEnabled = false
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, settings, &fakeNotifier{})

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, lister.calls)
	assert.Empty(t, p.LastSeen())
}

func TestPoller_ListErrorKeepsSeenSet(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a")}}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), &fakeNotifier{})

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	lister.err = fmt.Errorf("listing messages: %w", &gmail.APIError{Status: 500, Message: "boom"})
	_, err = p.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, p.LastSeen())
}

func TestPoller_NotifierErrorDoesNotStopCycle(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a"), unread("a", "b", "c")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	notifier.err = errors.New("store closed")
	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Notified)
	assert.Equal(t, []string{"a", "b", "c"}, p.LastSeen())
}

func TestPoller_ResetStartsNewBaseline(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a"), unread("a", "b")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	p.Reset()
	assert.Empty(t, p.LastSeen())

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Baseline)
	assert.Empty(t, notifier.seen)
}

func TestPoller_NotifiesAfterEmptyCycle(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a"), nil, unread("b")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Baseline)

	res, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Baseline)
	assert.Empty(t, p.LastSeen())

	res, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Baseline)
	assert.Equal(t, 1, res.Notified)
	require.Len(t, notifier.seen, 1)
	assert.Equal(t, "b", notifier.seen[0].MessageID)
}

func TestPoller_EmptyFirstCycleIsBaseline(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{nil, unread("a")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Baseline)

	res, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
}

func TestPoller_ResetDuringListDiscardsResults(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a", "b"), unread("c")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), notifier)
	lister.onList = func() {
		lister.onList = nil
		p.Reset()
	}

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, p.LastSeen())

	res, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Baseline)
	assert.Empty(t, notifier.seen)
	assert.Equal(t, []string{"c"}, p.LastSeen())
}

func TestPoller_ResetDuringTokenDropsToken(t *testing.T) {
	lister := &fakeLister{pages: [][]model.Message{unread("a")}}
	auth := &fakeAuth{token: "tok"}
	p := newTestPoller(lister, auth, enabled(), &fakeNotifier{})
	auth.onToken = func() {
		auth.onToken = nil
		p.Reset()
	}

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, lister.tokens)
	assert.Zero(t, lister.calls)
}

func TestInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Interval(model.Settings{}))
	assert.Equal(t, 1*time.Minute, Interval(model.Settings{RefreshInterval: 1}))
	assert.Equal(t, 30*time.Minute, Interval(model.Settings{RefreshInterval: 90}))
}

func TestPoller_StartRefreshStop(t *testing.T) {
	lister := &fakeLister{
		pages:  [][]model.Message{unread("a")},
		called: make(chan struct{}, 4),
	}
	p := newTestPoller(lister, &fakeAuth{token: "tok"}, enabled(), &fakeNotifier{})

	waitForCycle := func() {
		t.Helper()
		select {
		case <-lister.called:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for poll cycle")
		}
	}

	p.Start()
	p.Start()
	waitForCycle()

	p.SetInterval(10)
	p.Refresh()
	waitForCycle()

	p.Stop()
	p.Stop()

	lister.mu.Lock()
	defer lister.mu.Unlock()
	assert.Equal(t, 2, lister.calls)
}
