package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEncryptor(t *testing.T) Encryptor {
	t.Helper()
	enc, err := NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func TestSealString(t *testing.T) {
	enc := testEncryptor(t)

	sealed, err := SealString(enc, "Paludisme simple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "Paludisme")

	again, err := SealString(enc, "Paludisme simple")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := OpenString(enc, sealed)
	require.NoError(t, err)
	assert.Equal(t, "Paludisme simple", plain)
}

func TestOpenString_PassesThroughPlainText(t *testing.T) {
	plain, err := OpenString(testEncryptor(t), "written before encryption")
	require.NoError(t, err)
	assert.Equal(t, "written before encryption", plain)
}

func TestOpenString_RejectsTamperedText(t *testing.T) {
	enc := testEncryptor(t)
	sealed, err := SealString(enc, "secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = OpenString(enc, sealedPrefix+base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecryption)

	other, err := NewAESEncryptor([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	_, err = OpenString(other, sealed)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = ParseKey(base64.StdEncoding.EncodeToString(make([]byte, 20)))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = ParseKey("not base64!")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
