package sessions

import (
	"context"
	"time"
)

// ClientChannel is the credential the browser holds: in production an
// HttpOnly cookie carrying the bearer token. One value per request.
type ClientChannel interface {
	// Token returns the token presented by the client, if any.
	Token() (string, bool)

	// SetToken hands the token to the client until expiresAt.
	SetToken(token string, expiresAt time.Time) error

	// Expire tells the client to drop the credential. The token itself is
	// not revoked.
	Expire() error
}

// ServerStore is the server-side channel, keyed by agent id. Each agent owns
// a small hash of string values that expires as a whole.
type ServerStore interface {
	// Get returns the value under key for the agent. found is false when the
	// agent or the key is absent or expired.
	Get(ctx context.Context, agentID, key string) (value string, found bool, err error)

	// Set writes values for the agent and resets the agent's expiry to ttl.
	Set(ctx context.Context, agentID string, values map[string]string, ttl time.Duration) error

	// Delete removes keys for the agent. With no keys every value is removed.
	// Deleting something that does not exist is not an error.
	Delete(ctx context.Context, agentID string, keys ...string) error
}
