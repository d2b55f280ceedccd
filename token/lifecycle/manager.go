// Package lifecycle owns the session renewal policy: when a session counts
// as authenticated, when it is about to lapse and how it is renewed.
package lifecycle

import (
	"context"
	"time"

	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/internal/metrics"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/jrsteele09/go-billing-portal/users"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL            = 60 * time.Minute
	DefaultRenewThreshold = 10 * time.Minute
)

// Manager wraps one agent's session store. Renewal happens only inside a
// request, through VerifyAndMaybeRenew or Renew; there is no timer.
type Manager struct {
	store          *sessions.Store
	ttl            time.Duration
	renewThreshold time.Duration
}

// New creates a manager. A nil cfg uses the default TTL and threshold.
func New(store *sessions.Store, cfg config.SessionConfig) *Manager {
	m := &Manager{
		store:          store,
		ttl:            DefaultTTL,
		renewThreshold: DefaultRenewThreshold,
	}
	if cfg != nil {
		if ttl := cfg.GetSessionTTL(); ttl > 0 {
			m.ttl = ttl
		}
		if th := cfg.GetRenewThreshold(); th > 0 {
			m.renewThreshold = th
		}
	}
	return m
}

func (m *Manager) Store() *sessions.Store {
	return m.store
}

// TTL is the full session window a renewal grants.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) RenewThreshold() time.Duration {
	return m.renewThreshold
}

func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.store.IsAuthenticated(ctx)
}

func (m *Manager) Authenticated(ctx context.Context) (bool, error) {
	return m.store.Authenticated(ctx)
}

func (m *Manager) Profile(ctx context.Context) *users.Profile {
	return m.store.Profile(ctx)
}

func (m *Manager) Token(ctx context.Context) string {
	return m.store.Token(ctx)
}

func (m *Manager) RemainingMinutes(ctx context.Context) int {
	return m.store.RemainingMinutes(ctx)
}

func (m *Manager) SaveReturnURL(ctx context.Context, url string) {
	m.store.SaveReturnURL(ctx, url)
}

func (m *Manager) Close(ctx context.Context) {
	m.store.Close(ctx)
	metrics.SessionEvent("closed")
}

// Renew restarts the full window from now. The old expiry is discarded,
// not extended. Unauthenticated sessions are left alone.
func (m *Manager) Renew(ctx context.Context) {
	if !m.store.IsAuthenticated(ctx) {
		return
	}
	expiresAt := sessions.NowTimeFunc().Add(m.ttl)
	m.store.SetExpiresAt(ctx, expiresAt)
	metrics.SessionEvent("renewed")
	log.Debug().Str("agent", m.store.AgentID()).Time("expires_at", expiresAt).Msg("session renewed")
}

// IsNearExpiry reports 0 < remaining <= threshold, in whole minutes. A
// session with nothing left is expired, not near expiry.
func (m *Manager) IsNearExpiry(ctx context.Context, threshold time.Duration) bool {
	remaining := m.store.RemainingMinutes(ctx)
	return remaining > 0 && remaining <= int(threshold/time.Minute)
}

// VerifyAndMaybeRenew renews an authenticated session that is within
// threshold of expiring and returns whether the session is authenticated.
// A threshold <= 0 uses the configured one.
func (m *Manager) VerifyAndMaybeRenew(ctx context.Context, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = m.renewThreshold
	}
	if !m.store.IsAuthenticated(ctx) {
		return false
	}
	if m.IsNearExpiry(ctx, threshold) {
		m.Renew(ctx)
	}
	return true
}

type managerContextKey struct{}

// WithManager stores the request's manager on ctx.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerContextKey{}, m)
}

// FromContext returns the manager stored by WithManager, or nil.
func FromContext(ctx context.Context) *Manager {
	m, _ := ctx.Value(managerContextKey{}).(*Manager)
	return m
}
