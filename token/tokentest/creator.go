// Package tokentest mints bearer tokens shaped like the ones the billing
// backend issues. The portal never verifies signatures, so the key is a
// throwaway.
package tokentest

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-billing-portal/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var signingKey = []byte("tokentest-signing-key")

// Creator mints access tokens with a fixed lifetime
type Creator struct {
	ttl time.Duration
}

// NewCreator creates a creator whose tokens expire ttl after NowTimeFunc.
// A zero ttl mints tokens without an exp claim.
func NewCreator(ttl time.Duration) *Creator {
	return &Creator{ttl: ttl}
}

// CreateAccessToken mints a token for profile using the backend's claim names
func (c *Creator) CreateAccessToken(profile users.Profile) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub":         strconv.FormatInt(profile.ID, 10),
		"unique_name": profile.Username, // login name
		"role":        profile.Role,
		"iat":         now.Unix(),
		"jti":         uuid.New().String(), // unique token ID
	}
	if profile.Email != "" {
		claims["email"] = profile.Email
	}
	if c.ttl > 0 {
		claims["exp"] = now.Add(c.ttl).Unix()
	}
	return Sign(claims)
}

// Sign signs arbitrary claims with the throwaway key
func Sign(claims jwtlib.MapClaims) (string, error) {
	signedToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signedToken, nil
}
