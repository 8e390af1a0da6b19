// Package identity extracts the local user's identity from the bearer
// credential. The client has no signing key, so claims are read without
// signature verification; the server remains the authority on the token.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the client cares about.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Username string `json:"username"`
}

var ErrNoUserID = errors.New("identity: token carries no user id")

// FromToken parses the bearer token and returns its claims. Falls back to
// the registered subject when the uid claim is absent.
func FromToken(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrNoUserID
	}
	return claims, nil
}
