package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
)

// Durable storage keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiry       = "token_expiry"
)

const (
	DefaultExpiryMargin = 5 * time.Minute
	DefaultLifetime     = 3600 * time.Second
)

// Provider issues, refreshes and revokes credentials.
type Provider interface {
	// Authorize runs the interactive consent flow.
	Authorize(ctx context.Context) (*models.Credential, error)
	// Refresh obtains a new access token without user interaction.
	Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	// Revoke invalidates token at the provider.
	Revoke(ctx context.Context, token string) error
}

// KeyValueStore is the durable string storage the credential is persisted to.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Option configures a [Manager].
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithExpiryMargin sets how close to expiry a token counts as expired.
func WithExpiryMargin(d time.Duration) Option {
	return func(m *Manager) { m.margin = d }
}

// WithDefaultLifetime sets the lifetime assumed when the provider omits one.
func WithDefaultLifetime(d time.Duration) Option {
	return func(m *Manager) { m.lifetime = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager is the credential manager. It is safe for concurrent use and
// serializes refreshes, so concurrent callers of EnsureValid share one refresh.
type Manager struct {
	provider Provider
	store    KeyValueStore
	margin   time.Duration
	lifetime time.Duration
	now      func() time.Time
	logger   *log.Logger

	mu   sync.Mutex
	cred *models.Credential
}

// NewManager creates a Manager with no credential loaded. Call Restore or Authorize next.
func NewManager(provider Provider, store KeyValueStore, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		store:    store,
		margin:   DefaultExpiryMargin,
		lifetime: DefaultLifetime,
		now:      time.Now,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithPrefix("auth")
	return m
}

// Authorize runs the provider's interactive flow and stores the resulting credential.
func (m *Manager) Authorize(ctx context.Context) error {
	cred, err := m.provider.Authorize(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrTimeout) {
			return err
		}
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if !cred.Valid() {
		return fmt.Errorf("%w: provider returned no access token", shared.ErrAuthFailed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setLocked(cred); err != nil {
		return err
	}
	m.logger.Info("authorized", "expires", m.cred.Expiry.Format(time.RFC3339))
	return nil
}

// IsExpired reports whether no token is held or the token expires within the margin.
func (m *Manager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.ExpiresWithin(m.now(), m.margin)
}

// IsSignedIn reports whether a credential is held, expired or not.
func (m *Manager) IsSignedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.Valid()
}

// EnsureValid refreshes the credential when it is expired or about to expire.
// The refresh has completed, successfully or not, when EnsureValid returns.
func (m *Manager) EnsureValid(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cred.Valid() {
		return shared.ErrNotAuthenticated
	}
	if !m.cred.ExpiresWithin(m.now(), m.margin) {
		return nil
	}
	return m.refreshLocked(ctx)
}

// Refresh unconditionally asks the provider for a new access token.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cred.Valid() {
		return shared.ErrNotAuthenticated
	}
	return m.refreshLocked(ctx)
}

// refreshLocked keeps the current credential on failure.
func (m *Manager) refreshLocked(ctx context.Context) error {
	current := *m.cred
	fresh, err := m.provider.Refresh(ctx, &current)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if !fresh.Valid() {
		return fmt.Errorf("%w: provider returned no access token", shared.ErrRefreshFailed)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}

	if err := m.setLocked(fresh); err != nil {
		return err
	}
	m.logger.Debug("refreshed credential", "expires", m.cred.Expiry.Format(time.RFC3339))
	return nil
}

// Revoke forgets the credential locally and then notifies the provider.
// Provider failures are logged, not returned. Revoking with no credential is a no-op.
func (m *Manager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	var token string
	if m.cred.Valid() {
		token = m.cred.AccessToken
	}
	m.cred = nil
	err := m.clearStoreLocked()
	m.mu.Unlock()

	if token != "" {
		if rerr := m.provider.Revoke(ctx, token); rerr != nil {
			m.logger.Warn("provider revoke failed", "err", rerr)
		}
		m.logger.Info("signed out")
	}
	return err
}

// Restore loads a persisted credential. It reports true when the session is usable:
// either the token is unexpired or a silent refresh succeeded. An expired credential
// that cannot be refreshed is cleared.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.loadLocked()
	if err != nil {
		return false, err
	}
	if cred == nil {
		return false, nil
	}

	m.cred = cred
	if !cred.ExpiresWithin(m.now(), m.margin) {
		m.logger.Debug("restored credential", "expires", cred.Expiry.Format(time.RFC3339))
		return true, nil
	}

	if err := m.refreshLocked(ctx); err != nil {
		m.logger.Warn("stored credential expired and could not be refreshed", "err", err)
		m.cred = nil
		if cerr := m.clearStoreLocked(); cerr != nil {
			return false, cerr
		}
		return false, nil
	}
	return true, nil
}

// Credential returns a copy of the held credential, or nil.
func (m *Manager) Credential() *models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil
	}
	c := *m.cred
	return &c
}

// Token implements [oauth2.TokenSource]. It returns the held token as-is; callers that
// need a fresh token call EnsureValid first.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cred.Valid() {
		return nil, shared.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  m.cred.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: m.cred.RefreshToken,
		Expiry:       m.cred.Expiry,
	}, nil
}

func (m *Manager) setLocked(cred *models.Credential) error {
	c := *cred
	if c.Expiry.IsZero() {
		c.Expiry = m.now().Add(m.lifetime)
	}

	if err := m.store.Set(KeyAccessToken, c.AccessToken); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	if err := m.store.Set(KeyExpiry, c.Expiry.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	if c.RefreshToken != "" {
		if err := m.store.Set(KeyRefreshToken, c.RefreshToken); err != nil {
			return fmt.Errorf("failed to persist credential: %w", err)
		}
	}

	m.cred = &c
	return nil
}

func (m *Manager) loadLocked() (*models.Credential, error) {
	access, ok, err := m.store.Get(KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if !ok || access == "" {
		return nil, nil
	}

	cred := &models.Credential{AccessToken: access}
	if refresh, ok, err := m.store.Get(KeyRefreshToken); err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	} else if ok {
		cred.RefreshToken = refresh
	}

	raw, ok, err := m.store.Get(KeyExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if ok {
		if expiry, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			cred.Expiry = expiry
		} else {
			m.logger.Warn("ignoring unreadable token expiry", "value", raw)
		}
	}
	return cred, nil
}

func (m *Manager) clearStoreLocked() error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyExpiry} {
		if err := m.store.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear credential: %w", errors.Join(errs...))
	}
	return nil
}
