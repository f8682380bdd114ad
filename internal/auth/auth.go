package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nhle/mailbar/internal/credential"
	"github.com/nhle/mailbar/internal/model"
)

// tokenKey is the credential store key holding the OAuth token.
const tokenKey = "oauth-token"

// ErrNoToken is returned by a silent Token call when no usable token is
// cached.
var ErrNoToken = errors.New("no cached token")

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	LoadToken(key string) (*oauth2.Token, error)
	SaveToken(key string, tok *oauth2.Token) error
	Delete(key string) error
}

// Authenticator obtains access tokens for the mail provider, either
// silently from the credential store or through an interactive
// browser sign-in.
type Authenticator struct {
	cfg        *oauth2.Config
	store      TokenStore
	revokeURL  string
	httpClient *http.Client
	prompt     func(authURL string) error
	log        zerolog.Logger

	// interactive serializes browser sign-ins.
	interactive sync.Mutex
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHTTPClient sets the client used for token and revoke requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = hc }
}

// WithPrompt sets how the sign-in URL is shown to the user.
func WithPrompt(prompt func(authURL string) error) Option {
	return func(a *Authenticator) { a.prompt = prompt }
}

// WithLogger sets the authenticator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authenticator) { a.log = l }
}

// New creates an Authenticator for the OAuth client cfg.
func New(cfg *oauth2.Config, store TokenStore, revokeURL string, opts ...Option) *Authenticator {
	a := &Authenticator{
		cfg:        cfg,
		store:      store,
		revokeURL:  revokeURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        zerolog.Nop(),
	}
	a.prompt = func(authURL string) error {
		a.log.Info().Str("url", authURL).Msg("open this URL in a browser to sign in")
		return nil
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewOAuthConfig builds the provider OAuth client configuration.
func NewOAuthConfig(cfg model.AuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Endpoint:     google.Endpoint,
	}
}

// Token returns a valid access token. A cached token is refreshed when
// it has expired. When nothing usable is cached, a silent call returns
// ErrNoToken and an interactive call runs the browser sign-in.
func (a *Authenticator) Token(ctx context.Context, interactive bool) (string, error) {
	tok, err := a.cachedToken(ctx)
	if err == nil {
		return tok.AccessToken, nil
	}
	if !interactive {
		return "", err
	}

	a.interactive.Lock()
	defer a.interactive.Unlock()

	tok, err = a.signIn(ctx)
	if err != nil {
		return "", fmt.Errorf("signing in: %w", err)
	}
	if err := a.store.SaveToken(tokenKey, tok); err != nil {
		return "", err
	}

	a.log.Info().Msg("signed in")
	return tok.AccessToken, nil
}

// cachedToken loads the stored token and refreshes it if needed.
func (a *Authenticator) cachedToken(ctx context.Context) (*oauth2.Token, error) {
	stored, err := a.store.LoadToken(tokenKey)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if !stored.Valid() && stored.RefreshToken == "" {
		return nil, ErrNoToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	fresh, err := a.cfg.TokenSource(ctx, stored).Token()
	if err != nil {
		a.log.Debug().Err(err).Msg("token refresh failed")
		return nil, ErrNoToken
	}

	if fresh.AccessToken != stored.AccessToken {
		if err := a.store.SaveToken(tokenKey, fresh); err != nil {
			return nil, err
		}
	}
	return fresh, nil
}

// SignOut revokes the cached token at the provider (best effort) and
// removes it from the credential store.
func (a *Authenticator) SignOut(ctx context.Context) error {
	stored, err := a.store.LoadToken(tokenKey)
	if err == nil && a.revokeURL != "" {
		revoke := stored.RefreshToken
		if revoke == "" {
			revoke = stored.AccessToken
		}
		if err := a.revoke(ctx, revoke); err != nil {
			a.log.Warn().Err(err).Msg("token revoke failed")
		}
	}

	if err := a.store.Delete(tokenKey); err != nil {
		return fmt.Errorf("removing cached token: %w", err)
	}
	a.log.Info().Msg("signed out")
	return nil
}

func (a *Authenticator) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.revokeURL, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("creating revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoking token: unexpected status %d", resp.StatusCode)
	}
	return nil
}
