// Package redisstore keeps the server-side session channel in Redis so
// several portal instances can share sessions.
package redisstore

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "portal:session:"

// Store writes each agent's values to one Redis hash with a key-level TTL.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ sessions.ServerStore = (*Store)(nil)

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Dial opens a client and checks it answers before returning.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[Dial] redis at %s", addr)
	}
	return client, nil
}

func (s *Store) Get(ctx context.Context, agentID, key string) (string, bool, error) {
	if strings.TrimSpace(agentID) == "" {
		return "", false, errors.New("[Get] agent id is required")
	}

	value, err := s.client.HGet(ctx, s.key(agentID), key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[Get] redis hget")
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, agentID string, values map[string]string, ttl time.Duration) error {
	if strings.TrimSpace(agentID) == "" {
		return errors.New("[Set] agent id is required")
	}
	if len(values) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(agentID), fields)
	if ttl > 0 {
		pipe.Expire(ctx, s.key(agentID), ttlFor(ttl))
	} else {
		pipe.Persist(ctx, s.key(agentID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[Set] redis session write")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, agentID string, keys ...string) error {
	if strings.TrimSpace(agentID) == "" {
		return errors.New("[Delete] agent id is required")
	}

	var err error
	if len(keys) == 0 {
		err = s.client.Del(ctx, s.key(agentID)).Err()
	} else {
		err = s.client.HDel(ctx, s.key(agentID), keys...).Err()
	}
	if err != nil {
		return errors.Wrap(err, "[Delete] redis session delete")
	}
	return nil
}

// Redis rounds sub-second expiries down to nothing.
func ttlFor(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func (s *Store) key(agentID string) string {
	return s.prefix + agentID
}
