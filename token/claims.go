package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	perrors "github.com/jrsteele09/go-billing-portal/internal/errors"
	"github.com/jrsteele09/go-billing-portal/internal/utils"
)

// Claim names accepted for each field, in lookup order. The backend issues
// tokens from an ASP.NET identity stack, so the long schema URIs show up too.
var (
	usernameClaims = []string{"unique_name", "username", "preferred_username", "name"}
	roleClaims     = []string{"role", "roles", "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"}
	emailClaims    = []string{"email", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"}
)

// Claims is the subset of the bearer token payload the portal reads. It is
// derived on demand and never stored.
type Claims struct {
	Subject   string
	Username  string
	Role      string
	Email     string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token's exp is at or before now. Tokens
// without an exp claim are never reported as expired here.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// ReadClaims decodes the payload of a JWT without checking its signature.
// The backend verified the token when it issued it; the portal only needs
// the identity and expiry it carries.
func ReadClaims(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, perrors.ErrInvalidToken
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse token payload: %w", errors.Join(perrors.ErrInvalidToken, err))
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	sub, _ := mapClaims.GetSubject()
	claims := &Claims{
		Subject:  sub,
		Username: lookup(mapClaims, usernameClaims),
		Role:     lookup(mapClaims, roleClaims),
		Email:    lookup(mapClaims, emailClaims),
	}

	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

func lookup(claims jwtlib.MapClaims, names []string) string {
	for _, name := range names {
		if v, ok := claims[name]; ok {
			if s := utils.FirstString(v); s != "" {
				return s
			}
		}
	}
	return ""
}
