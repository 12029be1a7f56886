package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims is the subset of access token claims the client displays.
// They are read without signature verification: the client holds no key
// and the backend remains the only authority on validity.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// InspectClaims decodes the payload of a JWT access token without verifying it.
func InspectClaims(accessToken string) (*Claims, error) {
	var registered jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &registered); err != nil {
		return nil, errors.Wrap(err, "[InspectClaims] parse access token")
	}

	c := &Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		c.ExpiresAt = registered.ExpiresAt.Time
	}
	if registered.IssuedAt != nil {
		c.IssuedAt = registered.IssuedAt.Time
	}
	return c, nil
}

// Expired reports whether the token's exp claim is at or before now. Tokens without exp never expire locally.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}
