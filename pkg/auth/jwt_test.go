package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m, err := NewTokenManager("secret", "famalink", time.Hour)
	require.NoError(t, err)

	doctorID := uuid.New()
	token, issued, err := m.GenerateAccessToken(doctorID, "dr@example.ci")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, doctorID, claims.DoctorID)
	assert.Equal(t, "dr@example.ci", claims.Email)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestTokenManager_Expired(t *testing.T) {
	m, err := NewTokenManager("secret", "famalink", time.Minute)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := m.GenerateAccessToken(uuid.New(), "dr@example.ci")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	a, _ := NewTokenManager("secret-a", "famalink", time.Hour)
	b, _ := NewTokenManager("secret-b", "famalink", time.Hour)

	token, _, err := a.GenerateAccessToken(uuid.New(), "dr@example.ci")
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", "famalink", time.Hour)
	assert.Error(t, err)
}
