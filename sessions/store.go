package sessions

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/internal/metrics"
	"github.com/jrsteele09/go-billing-portal/token"
	"github.com/jrsteele09/go-billing-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const defaultTTL = 60 * time.Minute

// Session is a point-in-time copy of an authenticated session.
type Session struct {
	Token     string
	Profile   users.Profile
	ExpiresAt time.Time
}

// Options configures a Store.
type Options struct {
	Keys       config.SessionKeys
	DefaultTTL time.Duration // used when neither the caller nor the token gives an expiry
	Logger     *zerolog.Logger
}

// Store is the session façade for one agent. It writes every session to two
// channels and only treats the session as present when both agree. Writes
// are best effort: a failing channel is logged and the call carries on, so a
// half-written session simply reads as signed out.
//
// A Store is built per request and is not safe for concurrent use. Two
// requests from the same agent racing each other resolve last-write-wins.
type Store struct {
	agentID    string
	client     ClientChannel
	server     ServerStore
	keys       config.SessionKeys
	defaultTTL time.Duration
	logger     zerolog.Logger
}

// NewStore builds the façade over the agent's two channels.
func NewStore(agentID string, client ClientChannel, server ServerStore, opts Options) *Store {
	keys := opts.Keys
	if keys.Token == "" || keys.Profile == "" || keys.ExpiresAt == "" || keys.ReturnURL == "" {
		keys = config.DefaultSessionKeys()
	}
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Store{
		agentID:    agentID,
		client:     client,
		server:     server,
		keys:       keys,
		defaultTTL: ttl,
		logger:     logger.With().Str("agent", agentID).Logger(),
	}
}

// AgentID returns the server channel key this store writes under.
func (s *Store) AgentID() string {
	return s.agentID
}

// DefaultTTL is the session window applied when no other expiry is known.
func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Establish replaces whatever session the agent had with a new one. With
// ttlMinutes <= 0 the expiry comes from the token's exp claim, or the
// default TTL when the token has none.
func (s *Store) Establish(ctx context.Context, rawToken string, profile users.Profile, ttlMinutes int) {
	s.Close(ctx)

	now := NowTimeFunc()
	expiresAt := s.expiryFor(rawToken, ttlMinutes, now)

	if err := s.client.SetToken(rawToken, expiresAt); err != nil {
		s.logger.Err(err).Msg("establish: client channel write failed")
	}

	values := map[string]string{
		s.keys.Token:     rawToken,
		s.keys.ExpiresAt: expiresAt.Format(time.RFC3339Nano),
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		s.logger.Err(err).Msg("establish: profile serialization failed")
	} else {
		values[s.keys.Profile] = string(profileJSON)
	}

	if err := s.server.Set(ctx, s.agentID, values, expiresAt.Sub(now)); err != nil {
		s.logger.Err(err).Msg("establish: server channel write failed")
	}

	metrics.SessionEvent("established")
	s.logger.Info().Int64("user_id", profile.ID).Time("expires_at", expiresAt).Msg("session established")
}

func (s *Store) expiryFor(rawToken string, ttlMinutes int, now time.Time) time.Time {
	if ttlMinutes > 0 {
		return now.Add(time.Duration(ttlMinutes) * time.Minute)
	}
	claims, err := token.ReadClaims(rawToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("establish: token claims unreadable, using default ttl")
		return now.Add(s.defaultTTL)
	}
	if claims.ExpiresAt.After(now) {
		return claims.ExpiresAt
	}
	return now.Add(s.defaultTTL)
}

// Close drops the session from both channels. The cookie is expired rather
// than revoked. Close never fails; problems are logged.
func (s *Store) Close(ctx context.Context) {
	if err := s.client.Expire(); err != nil {
		s.logger.Err(err).Msg("close: client channel expire failed")
	}
	if err := s.server.Delete(ctx, s.agentID, s.keys.Token, s.keys.Profile, s.keys.ExpiresAt); err != nil {
		s.logger.Err(err).Msg("close: server channel delete failed")
	}
}

// Token prefers the client channel and falls back to the server channel.
func (s *Store) Token(ctx context.Context) string {
	if tok, ok := s.client.Token(); ok && tok != "" {
		return tok
	}
	tok, found, err := s.server.Get(ctx, s.agentID, s.keys.Token)
	if err != nil {
		s.logger.Err(err).Msg("token: server channel read failed")
		return ""
	}
	if !found {
		return ""
	}
	return tok
}

// Profile returns the stored profile, or nil when it is missing or cannot
// be decoded.
func (s *Store) Profile(ctx context.Context) *users.Profile {
	raw, found, err := s.server.Get(ctx, s.agentID, s.keys.Profile)
	if err != nil {
		s.logger.Err(err).Msg("profile: server channel read failed")
		return nil
	}
	if !found || strings.TrimSpace(raw) == "" {
		return nil
	}
	var profile users.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.logger.Warn().Err(err).Msg("profile: stored value is not valid json")
		return nil
	}
	return &profile
}

// Authenticated is IsAuthenticated with server channel errors surfaced.
// Finding the session expired closes it on the spot.
func (s *Store) Authenticated(ctx context.Context) (bool, error) {
	clientToken, ok := s.client.Token()
	if !ok || clientToken == "" {
		return false, nil
	}

	serverToken, found, err := s.server.Get(ctx, s.agentID, s.keys.Token)
	if err != nil {
		return false, err
	}
	if !found || serverToken != clientToken {
		return false, nil
	}

	expiresAt, ok, err := s.expiresAt(ctx)
	if err != nil {
		return false, err
	}
	if !ok || !NowTimeFunc().Before(expiresAt) {
		s.Close(ctx)
		metrics.SessionEvent("expired")
		s.logger.Info().Msg("session expired")
		return false, nil
	}

	return s.Profile(ctx) != nil, nil
}

// IsAuthenticated reports whether both channels hold the same unexpired
// token and a profile is stored.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	ok, err := s.Authenticated(ctx)
	if err != nil {
		s.logger.Err(err).Msg("authentication check failed")
		return false
	}
	return ok
}

// ExpiresAt returns the recorded expiry, if any.
func (s *Store) ExpiresAt(ctx context.Context) (time.Time, bool) {
	t, ok, err := s.expiresAt(ctx)
	if err != nil {
		s.logger.Err(err).Msg("expiry: server channel read failed")
		return time.Time{}, false
	}
	return t, ok
}

func (s *Store) expiresAt(ctx context.Context) (time.Time, bool, error) {
	raw, found, err := s.server.Get(ctx, s.agentID, s.keys.ExpiresAt)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn().Str("value", raw).Msg("expiry: stored value is not a timestamp")
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// SetExpiresAt moves the expiry of the current session on both channels.
// Only the lifecycle manager's renewal should call it.
func (s *Store) SetExpiresAt(ctx context.Context, expiresAt time.Time) {
	tok := s.Token(ctx)
	if tok == "" {
		return
	}
	if err := s.client.SetToken(tok, expiresAt); err != nil {
		s.logger.Err(err).Msg("renew: client channel write failed")
	}
	values := map[string]string{s.keys.ExpiresAt: expiresAt.Format(time.RFC3339Nano)}
	if err := s.server.Set(ctx, s.agentID, values, expiresAt.Sub(NowTimeFunc())); err != nil {
		s.logger.Err(err).Msg("renew: server channel write failed")
	}
}

// RemainingMinutes is the whole number of minutes left, floored at zero.
// A session with no recorded expiry has zero minutes left.
func (s *Store) RemainingMinutes(ctx context.Context) int {
	expiresAt, ok := s.ExpiresAt(ctx)
	if !ok {
		return 0
	}
	remaining := expiresAt.Sub(NowTimeFunc()).Minutes()
	if remaining <= 0 {
		return 0
	}
	return int(math.Floor(remaining))
}

// Snapshot returns the session when it is authenticated.
func (s *Store) Snapshot(ctx context.Context) (*Session, bool) {
	if !s.IsAuthenticated(ctx) {
		return nil, false
	}
	profile := s.Profile(ctx)
	expiresAt, _ := s.ExpiresAt(ctx)
	if profile == nil {
		return nil, false
	}
	return &Session{Token: s.Token(ctx), Profile: *profile, ExpiresAt: expiresAt}, true
}

// returnAgentID keys the return URL record. It lives beside the session
// hash so that writing it never moves the session's expiry.
func (s *Store) returnAgentID() string {
	return s.agentID + ":return"
}

// SaveReturnURL remembers where to send the user after signing in. It is
// kept apart from the session and survives Close.
func (s *Store) SaveReturnURL(ctx context.Context, url string) {
	if err := s.server.Set(ctx, s.returnAgentID(), map[string]string{s.keys.ReturnURL: url}, s.defaultTTL); err != nil {
		s.logger.Err(err).Msg("return url: server channel write failed")
	}
}

// ReturnURL reads the stored post-login target without consuming it.
func (s *Store) ReturnURL(ctx context.Context) string {
	url, found, err := s.server.Get(ctx, s.returnAgentID(), s.keys.ReturnURL)
	if err != nil {
		s.logger.Err(err).Msg("return url: server channel read failed")
		return ""
	}
	if !found {
		return ""
	}
	return url
}

// TakeReturnURL reads and clears the stored post-login target.
func (s *Store) TakeReturnURL(ctx context.Context) string {
	url := s.ReturnURL(ctx)
	if url == "" {
		return ""
	}
	if err := s.server.Delete(ctx, s.returnAgentID(), s.keys.ReturnURL); err != nil {
		s.logger.Err(err).Msg("return url: server channel delete failed")
	}
	return url
}
