package sessions

import (
	"net/http"
	"strings"
	"time"
)

// CookieChannel keeps the bearer token in an HttpOnly cookie. Writes made
// while handling a request are visible to later reads in the same request,
// since the browser only sends them back on the next one.
type CookieChannel struct {
	w      http.ResponseWriter
	r      *http.Request
	name   string
	secure bool

	written bool
	pending string
}

var _ ClientChannel = (*CookieChannel)(nil)

// NewCookieChannel binds the channel to one request/response pair.
func NewCookieChannel(w http.ResponseWriter, r *http.Request, name string, forceSecure bool) *CookieChannel {
	return &CookieChannel{
		w:      w,
		r:      r,
		name:   name,
		secure: forceSecure || IsSecureRequest(r),
	}
}

func (c *CookieChannel) Token() (string, bool) {
	if c.written {
		return c.pending, c.pending != ""
	}
	cookie, err := c.r.Cookie(c.name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *CookieChannel) SetToken(token string, expiresAt time.Time) error {
	c.set(&http.Cookie{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.written = true
	c.pending = token
	return nil
}

func (c *CookieChannel) Expire() error {
	c.set(&http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.written = true
	c.pending = ""
	return nil
}

// set replaces any earlier write of the cookie in this response, so a
// close followed by an establish sends a single header.
func (c *CookieChannel) set(cookie *http.Cookie) {
	h := c.w.Header()
	prefix := c.name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(c.w, cookie)
}

// IsSecureRequest reports whether the request arrived over TLS, directly or
// through a proxy that set X-Forwarded-Proto.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
