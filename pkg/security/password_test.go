package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hashed, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hashed)

	assert.NoError(t, h.Compare(hashed, "secret123"))
	assert.ErrorIs(t, h.Compare(hashed, "wrong-one"), ErrPasswordMismatch)
}

func TestBcryptHasher_RejectsShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
