package sync

import (
	"context"
	"sort"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbar/internal/codec"
	"github.com/nhle/mailbar/internal/gmail"
	"github.com/nhle/mailbar/internal/model"
	"github.com/nhle/mailbar/internal/notify"
)

// cycleTimeout is the maximum time allowed for a single poll cycle.
const cycleTimeout = 30 * time.Second

// unreadFetchLimit is how many unread messages a cycle looks at.
const unreadFetchLimit = 10

// MessageLister is the part of the mail client the poller uses.
type MessageLister interface {
	SetToken(token string)
	ListMessages(ctx context.Context, opts gmail.ListOptions) (*model.MessagePage, error)
}

// TokenSource hands out access tokens. The poller only ever asks for
// them silently.
type TokenSource interface {
	Token(ctx context.Context, interactive bool) (string, error)
}

// SettingsSource returns the current user settings.
type SettingsSource interface {
	Get() model.Settings
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Skipped  bool
	Baseline bool
	Notified int
}

// Poller periodically checks for unread mail and raises a notification
// for each message it has not seen before.
//
// The set of last-seen message IDs starts empty, is replaced after every
// successful cycle and is never persisted. The first cycle after start
// or Reset only records a baseline. A cycle that overlaps a Reset
// discards its token and results.
type Poller struct {
	client   MessageLister
	auth     TokenSource
	settings SettingsSource
	notifier notify.Notifier
	log      zerolog.Logger

	triggerCh  chan struct{}
	intervalCh chan time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	mu         gosync.Mutex
	lastSeen   map[string]struct{}
	baselined  bool
	generation uint64
	running    bool
}

// New creates a Poller. It does nothing until Start is called.
func New(
	client MessageLister,
	auth TokenSource,
	settings SettingsSource,
	notifier notify.Notifier,
	log zerolog.Logger,
) *Poller {
	return &Poller{
		client:     client,
		auth:       auth,
		settings:   settings,
		notifier:   notifier,
		log:        log,
		triggerCh:  make(chan struct{}, 1),
		intervalCh: make(chan time.Duration, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		lastSeen:   make(map[string]struct{}),
	}
}

// Start launches the polling goroutine. The first cycle runs immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	go p.loop(Interval(p.settings.Get()))
}

// Stop halts the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh
}

// Refresh triggers an immediate cycle. It never blocks; a refresh that
// is already pending absorbs this one.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// SetInterval changes the poll period, clamped to the allowed range.
func (p *Poller) SetInterval(minutes int) {
	d := time.Duration(model.ClampRefreshInterval(minutes)) * time.Minute

	// Keep only the latest pending value.
	select {
	case <-p.intervalCh:
	default:
	}
	select {
	case p.intervalCh <- d:
	default:
	}
}

// Reset forgets every seen message ID, so the next cycle is a baseline.
// A cycle already in flight will not install its token or seen set.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = make(map[string]struct{})
	p.baselined = false
	p.generation++
}

// LastSeen returns the IDs recorded by the last cycle, sorted.
func (p *Poller) LastSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.lastSeen))
	for id := range p.lastSeen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Interval returns the poll period configured in settings.
func Interval(s model.Settings) time.Duration {
	return time.Duration(model.ClampRefreshInterval(s.RefreshInterval)) * time.Minute
}

func (p *Poller) loop(interval time.Duration) {
	defer close(p.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runLogged()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runLogged()
		case <-p.triggerCh:
			p.runLogged()
		case d := <-p.intervalCh:
			ticker.Reset(d)
			p.log.Info().Dur("interval", d).Msg("poll interval changed")
		}
	}
}

// runLogged runs one cycle. Failures are logged and never stop the loop.
func (p *Poller) runLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	res, err := p.RunCycle(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("mail check failed")
		return
	}
	p.log.Debug().
		Bool("skipped", res.Skipped).
		Bool("baseline", res.Baseline).
		Int("notified", res.Notified).
		Msg("mail check done")
}

// RunCycle performs a single check:
//  1. acquire a token silently, skipping the cycle if none is available;
//  2. skip if notifications are disabled;
//  3. list up to ten unread messages;
//  4. notify for IDs not in the last-seen set, unless this is the first
//     cycle since start or Reset;
//  5. replace the last-seen set with the current IDs.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()

	token, err := p.auth.Token(ctx, false)
	if err != nil || token == "" {
		p.log.Debug().Err(err).Msg("no token, skipping mail check")
		return CycleResult{Skipped: true}, nil
	}
	if !p.installToken(gen, token) {
		return CycleResult{Skipped: true}, nil
	}

	if !p.settings.Get().NotificationsEnabled {
		return CycleResult{Skipped: true}, nil
	}

	page, err := p.client.ListMessages(ctx, gmail.ListOptions{
		Filter:     gmail.FilterUnread,
		MaxResults: unreadFetchLimit,
	})
	if err != nil {
		return CycleResult{}, err
	}

	current := make(map[string]struct{}, len(page.Messages))
	for _, m := range page.Messages {
		current[m.ID] = struct{}{}
	}

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		p.log.Debug().Msg("reset during mail check, discarding results")
		return CycleResult{Skipped: true}, nil
	}
	previous := p.lastSeen
	baseline := !p.baselined
	p.lastSeen = current
	p.baselined = true
	p.mu.Unlock()

	if baseline {
		return CycleResult{Baseline: true}, nil
	}

	var res CycleResult
	for _, m := range page.Messages {
		if _, seen := previous[m.ID]; seen {
			continue
		}

		if err := p.notifier.Notify(ctx, notificationFor(m)); err != nil {
			p.log.Warn().Err(err).Str("message_id", m.ID).Msg("raising notification failed")
			continue
		}
		res.Notified++
	}

	return res, nil
}

// installToken hands token to the client unless a Reset happened since
// the cycle began.
func (p *Poller) installToken(gen uint64, token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation != gen {
		p.log.Debug().Msg("reset during mail check, dropping token")
		return false
	}
	p.client.SetToken(token)
	return true
}

func notificationFor(m model.Message) model.Notification {
	text := m.Header(codec.HeaderSubject)
	if text == "" {
		text = m.Snippet
	}
	return model.Notification{
		ID:        notify.IDFor(m.ID),
		MessageID: m.ID,
		Title:     m.Sender.Name,
		Message:   text,
		CreatedAt: time.Now(),
	}
}
