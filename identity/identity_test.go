package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestFromToken_UIDClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"uid": "user-42", "username": "alice"})

	claims, err := FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestFromToken_SubjectFallback(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42"})

	claims, err := FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
}

func TestFromToken_NoUserID(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"username": "alice"})

	_, err := FromToken(token)
	assert.ErrorIs(t, err, ErrNoUserID)
}

func TestFromToken_Garbage(t *testing.T) {
	_, err := FromToken("not-a-jwt")
	assert.Error(t, err)
}
