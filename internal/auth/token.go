// Package auth issues and verifies the supplemental JWT session tokens
// returned by auth.login, letting a reconnecting peer re-establish its
// login-store entry without resending a bare username. The broker's
// authorization policy itself remains exactly "peer is logged in under some
// username" — this package only carries that fact across a reconnect.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails signature
// verification, is malformed, or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired session token")

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	PeerAddr string `json:"peer_addr"`
}

// Issuer signs and verifies session tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer using secret to sign tokens that expire after
// ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a session token binding peerAddr to username.
func (i *Issuer) Issue(peerAddr, username string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Username: username,
		PeerAddr: peerAddr,
	})
	return tok.SignedString(i.secret)
}

// Verify checks a session token's signature and expiry, returning the
// username and peer address it was issued for.
func (i *Issuer) Verify(token string) (username, peerAddr string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return "", "", ErrInvalidToken
	}
	return c.Username, c.PeerAddr, nil
}
