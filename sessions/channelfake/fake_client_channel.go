package channelfake

import (
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-billing-portal/sessions"
)

var _ sessions.ClientChannel = (*FakeClientChannel)(nil)

// FakeClientChannel is an in-memory stand-in for the token cookie. Like a
// browser it stops presenting the token once its expiry passes, judged by
// sessions.NowTimeFunc.
type FakeClientChannel struct {
	lock      sync.Mutex
	token     string
	expiresAt time.Time

	FailWrites bool // SetToken and Expire return an error
}

func NewFakeClientChannel() *FakeClientChannel {
	return &FakeClientChannel{}
}

// WithToken presets the token as if the browser had sent it.
func (c *FakeClientChannel) WithToken(token string) *FakeClientChannel {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.token = token
	c.expiresAt = time.Time{}
	return c
}

func (c *FakeClientChannel) Token() (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.expiresAt.IsZero() && !sessions.NowTimeFunc().Before(c.expiresAt) {
		return "", false
	}
	return c.token, c.token != ""
}

func (c *FakeClientChannel) SetToken(token string, expiresAt time.Time) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.FailWrites {
		return errors.New("client channel unavailable")
	}
	c.token = token
	c.expiresAt = expiresAt
	return nil
}

func (c *FakeClientChannel) Expire() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.FailWrites {
		return errors.New("client channel unavailable")
	}
	c.token = ""
	c.expiresAt = time.Time{}
	return nil
}

// ExpiresAt is the expiry last handed to SetToken.
func (c *FakeClientChannel) ExpiresAt() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.expiresAt
}
