package config

import "time"

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetRenewThreshold() time.Duration
	GetTokenCookieName() string
	GetAgentCookieName() string
	GetSessionKeys() SessionKeys
	GetForceSecureCookies() bool
}

// SessionKeys names the sub-keys written to the server-keyed channel.
type SessionKeys struct {
	Token     string
	Profile   string
	ExpiresAt string
	ReturnURL string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionTTL() time.Duration {
	return time.Duration(GetEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute
}

func (Session) GetRenewThreshold() time.Duration {
	return time.Duration(GetEnvInt("SESSION_RENEW_THRESHOLD_MINUTES", 10)) * time.Minute
}

func (Session) GetTokenCookieName() string {
	return GetEnv("TOKEN_COOKIE_NAME", "portal_token")
}

func (Session) GetAgentCookieName() string {
	return GetEnv("AGENT_COOKIE_NAME", "portal_agent")
}

func (Session) GetSessionKeys() SessionKeys {
	return SessionKeys{
		Token:     GetEnv("SESSION_KEY_TOKEN", "Token"),
		Profile:   GetEnv("SESSION_KEY_PROFILE", "Usuario"),
		ExpiresAt: GetEnv("SESSION_KEY_EXPIRES", "Expiracion"),
		ReturnURL: GetEnv("SESSION_KEY_RETURN_URL", "ReturnUrl"),
	}
}

func (Session) GetForceSecureCookies() bool {
	return GetEnvBool("FORCE_SECURE_COOKIES", false)
}

// DefaultSessionKeys is used when no configuration is supplied.
func DefaultSessionKeys() SessionKeys {
	return Session{}.GetSessionKeys()
}
