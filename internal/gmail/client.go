package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/nhle/mailbar/internal/codec"
)

// userID addresses the mailbox of the authenticated user.
const userID = "me"

// defaultTimeout bounds a single provider call when no deadline is set.
const defaultTimeout = 30 * time.Second

// Client wraps the Gmail REST API behind the operations the toolbar
// needs and normalizes responses into model types.
//
// A Client holds at most one access token. The token is shared by every
// caller (bridge requests and the poller) and may be replaced or cleared
// at any time; each request reads the current value.
type Client struct {
	svc       *gmail.Service
	limiter   *rate.Limiter
	sanitizer *codec.Sanitizer
	timeout   time.Duration
	log       zerolog.Logger

	endpoint  string
	transport http.RoundTripper

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at a different API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		c.endpoint = endpoint
	}
}

// WithTransport sets the underlying HTTP transport. Bearer auth is added
// on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithRateLimit caps outbound requests at rps per second. Zero or
// negative disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithSanitizer enables HTML sanitizing of provider-supplied bodies.
func WithSanitizer(s *codec.Sanitizer) Option {
	return func(c *Client) { c.sanitizer = s }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient builds a Client with no token set.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		timeout:   defaultTimeout,
		log:       zerolog.Nop(),
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}

	svcOpts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{
			Transport: &bearerTransport{client: c, base: c.transport},
		}),
	}
	if c.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gmail.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	c.svc = svc

	return c, nil
}

// SetToken installs the access token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken drops the access token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// HasToken reports whether an access token is set.
func (c *Client) HasToken() bool {
	return c.currentToken() != ""
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// begin checks for a token and derives the per-call context.
func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if !c.HasToken() {
		return nil, nil, ErrAuthRequired
	}
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, nil
}

// bearerTransport adds the client's current token to every request and
// applies the optional rate limit.
type bearerTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.client.currentToken()
	if token == "" {
		return nil, ErrAuthRequired
	}

	if t.client.limiter != nil {
		if err := t.client.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate wait canceled: %w", err)
		}
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return t.base.RoundTrip(req)
}
