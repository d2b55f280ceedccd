package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	perrors "github.com/jrsteele09/go-billing-portal/internal/errors"
	"github.com/jrsteele09/go-billing-portal/token"
	"github.com/jrsteele09/go-billing-portal/token/tokentest"
	"github.com/jrsteele09/go-billing-portal/users"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := tokentest.Sign(claims)
	require.NoError(t, err)
	return raw
}

func TestReadClaims(t *testing.T) {
	exp := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	t.Run("reads identity and expiry without verifying", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{
			"sub":         "7",
			"unique_name": "jperez",
			"role":        "Vendedor",
			"email":       "jperez@example.com",
			"exp":         exp.Unix(),
		})

		claims, err := token.ReadClaims(raw)
		require.NoError(t, err)
		require.Equal(t, "7", claims.Subject)
		require.Equal(t, "jperez", claims.Username)
		require.Equal(t, "Vendedor", claims.Role)
		require.Equal(t, "jperez@example.com", claims.Email)
		require.True(t, claims.ExpiresAt.Equal(exp))
	})

	t.Run("role array takes first entry", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{
			"sub":   "9",
			"roles": []string{"Administrador", "Vendedor"},
		})

		claims, err := token.ReadClaims(raw)
		require.NoError(t, err)
		require.Equal(t, "Administrador", claims.Role)
		require.True(t, claims.ExpiresAt.IsZero())
	})

	t.Run("expired tokens still parse", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		claims, err := token.ReadClaims(signed(t, jwtlib.MapClaims{"sub": "1", "exp": past.Unix()}))
		require.NoError(t, err)
		require.True(t, claims.Expired(time.Now()))
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := token.ReadClaims("  ")
		require.ErrorIs(t, err, perrors.ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := token.ReadClaims("abc")
		require.Error(t, err)
		require.ErrorIs(t, err, perrors.ErrInvalidToken)
	})
}

func TestReadClaims_MintedToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prev := tokentest.NowTimeFunc
	tokentest.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { tokentest.NowTimeFunc = prev })

	raw, err := tokentest.NewCreator(45 * time.Minute).CreateAccessToken(users.Profile{
		ID:       12,
		Username: "mlopez",
		Role:     users.RoleContador,
		Email:    "mlopez@example.com",
	})
	require.NoError(t, err)

	claims, err := token.ReadClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "12", claims.Subject)
	require.Equal(t, "mlopez", claims.Username)
	require.Equal(t, users.RoleContador, claims.Role)
	require.Equal(t, "mlopez@example.com", claims.Email)
	require.True(t, claims.ExpiresAt.Equal(now.Add(45*time.Minute)))

	raw, err = tokentest.NewCreator(0).CreateAccessToken(users.Profile{ID: 1})
	require.NoError(t, err)
	claims, err = token.ReadClaims(raw)
	require.NoError(t, err)
	require.True(t, claims.ExpiresAt.IsZero())
}

func TestClaims_Expired(t *testing.T) {
	now := time.Now()
	require.False(t, (&token.Claims{}).Expired(now))
	require.True(t, (&token.Claims{ExpiresAt: now}).Expired(now))
	require.False(t, (&token.Claims{ExpiresAt: now.Add(time.Minute)}).Expired(now))
}
