package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidIvorianPhone(t *testing.T) {
	valid := []string{"+2250701020304", "0701020304", "+225 07 01 02 03 04", "012345678"}
	for _, p := range valid {
		assert.True(t, IsValidIvorianPhone(p), p)
	}

	invalid := []string{"", "+33612345678", "0123", "07010203040506", "+225abc"}
	for _, p := range invalid {
		assert.False(t, IsValidIvorianPhone(p), p)
	}
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "+225 07 89 45 36 21", Phone("+2250789453621"))
	assert.Equal(t, "+225 07 89 45 36 21", Phone("+225 0789453621"))
	assert.Equal(t, "0789453621", Phone("0789453621"))
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+225789453621", E164("0789453621"))
	assert.Equal(t, "+2250789453621", E164("+225 07 89 45 36 21"))
}

func TestDates(t *testing.T) {
	at := time.Date(2024, 2, 12, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "12/02/2024", Date(at))
	assert.Equal(t, "12/02/2024 à 09:05", DateTime(at))
	assert.Equal(t, "lundi 12 février 2024", LongDate(at))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AK", Initials("awa", "Koné"))
	assert.Equal(t, "ÉD", Initials("élodie", "Diallo"))
	assert.Equal(t, "A", Initials("Awa", ""))
}
