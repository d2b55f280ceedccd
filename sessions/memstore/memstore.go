// Package memstore is an in-process ServerStore for single-instance
// deployments and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-billing-portal/internal/errors"
	"github.com/jrsteele09/go-billing-portal/sessions"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type record struct {
	values    map[string]string
	expiresAt time.Time
}

func (r record) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// Store keeps each agent's values in memory. Expired records are dropped
// lazily when they are next read or written; nothing runs in the background.
type Store struct {
	mu     sync.RWMutex
	agents map[string]record // agentID -> record
}

var _ sessions.ServerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		agents: make(map[string]record),
	}
}

// Get returns a value for the agent
func (s *Store) Get(_ context.Context, agentID, key string) (string, bool, error) {
	if agentID == "" {
		return "", false, errors.ErrMissingAgent
	}

	s.mu.RLock()
	rec, ok := s.agents[agentID]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	if rec.expired(NowTimeFunc()) {
		s.mu.Lock()
		if cur, ok := s.agents[agentID]; ok && cur.expired(NowTimeFunc()) {
			delete(s.agents, agentID)
		}
		s.mu.Unlock()
		return "", false, nil
	}

	v, ok := rec.values[key]
	return v, ok, nil
}

// Set merges values into the agent's record and resets its expiry
func (s *Store) Set(_ context.Context, agentID string, values map[string]string, ttl time.Duration) error {
	if agentID == "" {
		return errors.ErrMissingAgent
	}

	now := NowTimeFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[agentID]
	if !ok || rec.expired(now) {
		rec = record{values: make(map[string]string, len(values))}
	}

	// Copy so callers can't mutate stored values
	merged := make(map[string]string, len(rec.values)+len(values))
	for k, v := range rec.values {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	rec.values = merged

	if ttl > 0 {
		rec.expiresAt = now.Add(ttl)
	} else {
		rec.expiresAt = time.Time{}
	}
	s.agents[agentID] = rec
	return nil
}

// Delete removes keys from the agent's record
func (s *Store) Delete(_ context.Context, agentID string, keys ...string) error {
	if agentID == "" {
		return errors.ErrMissingAgent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[agentID]
	if !ok {
		return nil // Already doesn't exist, no error
	}

	if len(keys) == 0 {
		delete(s.agents, agentID)
		return nil
	}

	merged := make(map[string]string, len(rec.values))
	for k, v := range rec.values {
		merged[k] = v
	}
	for _, k := range keys {
		delete(merged, k)
	}

	// Clean up empty records
	if len(merged) == 0 {
		delete(s.agents, agentID)
		return nil
	}
	rec.values = merged
	s.agents[agentID] = rec
	return nil
}

// Len is the number of agents with a record, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}
