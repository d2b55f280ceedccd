package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, v := range []string{"PORT", "ENV", "SESSION_TTL_MINUTES", "SESSION_RENEW_THRESHOLD_MINUTES", "API_TIMEOUT", "TOKEN_COOKIE_NAME", "AGENT_COOKIE_NAME", "REDIS_ADDR"} {
		t.Setenv(v, "")
	}
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, 60*time.Minute, c.GetSessionTTL())
	require.Equal(t, 10*time.Minute, c.GetRenewThreshold())
	require.Equal(t, 30*time.Second, c.GetAPITimeout())
	require.Equal(t, "portal_token", c.GetTokenCookieName())
	require.Equal(t, "portal_agent", c.GetAgentCookieName())
	require.Equal(t, config.SessionKeys{Token: "Token", Profile: "Usuario", ExpiresAt: "Expiracion", ReturnURL: "ReturnUrl"}, c.GetSessionKeys())
	require.Empty(t, c.GetRedisAddr())
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("SESSION_TTL_MINUTES", "15")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("FORCE_SECURE_COOKIES", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	c := config.New()

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 15*time.Minute, c.GetSessionTTL())
	require.Equal(t, 5*time.Second, c.GetAPITimeout())
	require.True(t, c.GetForceSecureCookies())

	origins := c.GetAllowedOrigins()
	require.Len(t, origins, 2)
	require.True(t, origins.IsAllowedOrigin("https://b.example.com"))
	require.False(t, origins.IsAllowedOrigin("*"))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PORTAL_TEST_INT", "abc")
	require.Equal(t, 4, config.GetEnvInt("PORTAL_TEST_INT", 4))

	t.Setenv("PORTAL_TEST_DURATION", "45")
	require.Equal(t, 45*time.Second, config.GetEnvDuration("PORTAL_TEST_DURATION", time.Second))

	t.Setenv("PORTAL_TEST_DURATION", "soon")
	require.Equal(t, time.Second, config.GetEnvDuration("PORTAL_TEST_DURATION", time.Second))

	t.Setenv("PORTAL_TEST_BOOL", "maybe")
	require.True(t, config.GetEnvBool("PORTAL_TEST_BOOL", true))
}
