// Package auth provides the bearer credential used by the session channel and coordinates refreshing it.
//
// The OAuth2 token lives in the shared key-value store next to the refresh lease, so every jam process of one user sees
// the same token. A refresh runs only while holding the [lock.RefreshLock]: the provider invalidates a refresh token
// when it issues the next one, so two processes refreshing at once would leave one of them with a dead credential.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/jam/internal/lock"
	"github.com/desertthunder/jam/internal/shared"
)

const (
	// TokenKey is where the token is stored.
	TokenKey = "jam.token"
	// DefaultSkew is how long before expiry a token is considered stale.
	DefaultSkew = time.Minute
)

// Provider reads, stores and refreshes the shared token.
type Provider struct {
	config *oauth2.Config
	store  lock.Store
	lock   *lock.RefreshLock
	logger *log.Logger
	now    func() time.Time
	skew   time.Duration
}

// Option configures a [Provider].
type Option func(*Provider)

// WithClock replaces [time.Now].
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithSkew overrides [DefaultSkew].
func WithSkew(d time.Duration) Option {
	return func(p *Provider) { p.skew = d }
}

// NewProvider creates a provider. config may be nil when tokens are only imported and never refreshed.
func NewProvider(config *oauth2.Config, store lock.Store, l *lock.RefreshLock, logger *log.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	p := &Provider{
		config: config,
		store:  store,
		lock:   l,
		logger: shared.WithLogger(logger, "component", "auth"),
		now:    time.Now,
		skew:   DefaultSkew,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns the stored token.
func (p *Provider) Token() (*oauth2.Token, bool, error) {
	raw, ok, err := p.store.Get(TokenKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read token: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, false, fmt.Errorf("%w: stored token is corrupt: %v", shared.ErrInvalidInput, err)
	}
	return &token, true, nil
}

// BearerToken returns the current access token if it has not expired.
func (p *Provider) BearerToken() (string, bool) {
	token, ok, err := p.Token()
	if err != nil {
		p.logger.Warn("could not read token", "error", err)
		return "", false
	}
	if !ok || !p.valid(token, 0) {
		return "", false
	}
	return token.AccessToken, true
}

// Store saves a token obtained outside jam.
func (p *Provider) Store(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: token has no access token", shared.ErrInvalidArgument)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	err = p.store.Update(TokenKey, func([]byte, bool) ([]byte, bool, error) {
		return raw, true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Refresh exchanges the refresh token for a new token while holding the refresh lease.
//
// When another process holds the lease Refresh returns [shared.ErrRefreshLockContended] without touching the network;
// the caller should skip this refresh, not report a failure. If the stored token is already fresh once the lease is
// held, another process refreshed it first and it is returned as is.
func (p *Provider) Refresh(ctx context.Context) (*oauth2.Token, error) {
	if p.config == nil {
		return nil, fmt.Errorf("%w: no oauth client configured", shared.ErrMissingCredentials)
	}

	acquired, err := p.lock.Acquire()
	if err != nil {
		return nil, err
	}
	if !acquired {
		p.logger.Debug("refresh skipped, lease held elsewhere")
		return nil, shared.ErrRefreshLockContended
	}
	defer func() {
		if err := p.lock.Release(); err != nil {
			p.logger.Error("failed to release refresh lease", "error", err)
		}
	}()

	current, ok, err := p.Token()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}
	if p.valid(current, p.skew) {
		p.logger.Debug("token already refreshed")
		return current, nil
	}
	if current.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	next, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if err := p.Store(next); err != nil {
		return nil, err
	}

	p.logger.Info("token refreshed", "expires", next.Expiry.Format(time.RFC3339))
	return next, nil
}

// EnsureFresh refreshes the token when it expires within the skew window. If another process is refreshing and the
// current token is still usable, the current token is returned.
func (p *Provider) EnsureFresh(ctx context.Context) (*oauth2.Token, error) {
	current, ok, err := p.Token()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}
	if p.valid(current, p.skew) {
		return current, nil
	}

	next, err := p.Refresh(ctx)
	if errors.Is(err, shared.ErrRefreshLockContended) && p.valid(current, 0) {
		return current, nil
	}
	return next, err
}

// TokenSource adapts the provider for [oauth2.NewClient]: every request uses the shared token, refreshed first when
// needed.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, p: p}
}

func (p *Provider) valid(t *oauth2.Token, within time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return t.Expiry.After(p.now().Add(within))
}

type tokenSource struct {
	ctx context.Context
	p   *Provider
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.p.EnsureFresh(s.ctx)
}
