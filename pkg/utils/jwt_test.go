package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", 1)
	userID := uuid.New()

	token, expiresAt, err := manager.GenerateToken(userID, "dewi", "supervisor")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "dewi", claims.Username)
	assert.Equal(t, "supervisor", claims.Role)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("secret-a", 1).GenerateToken(uuid.New(), "user", "agent")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", 1).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret", 1)
	_, err := manager.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", 1)
	userID := uuid.New()

	token, err := manager.GenerateRefreshToken(userID)
	require.NoError(t, err)

	parsed, err := manager.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
