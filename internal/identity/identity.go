// Package identity inspects the session access token. Acquiring and
// refreshing the token is the auth layer's job (outside this service);
// here we only read claims to learn who the session belongs to.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session describes the identity carried by an access token.
type Session struct {
	Owner     string
	ExpiresAt time.Time // zero if the token carries no expiry
}

// Inspect extracts the owner (sub claim) and expiry from a JWT access
// token. The signature is not verified: the remote store is the party
// that must trust the token, this process only needs to know which
// account the cached data belongs to.
func Inspect(token string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("access token has no subject claim")
	}

	session := &Session{Owner: sub}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	return session, nil
}

// Expired reports whether the token's expiry has passed. Tokens with
// no expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
