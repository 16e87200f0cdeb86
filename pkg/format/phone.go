// Package format holds the Ivorian phone and French date conventions used in
// API payloads, SMS bodies and generated documents.
package format

import (
	"regexp"
	"strings"
	"unicode"
)

const ivoryCoastPrefix = "+225"

var ivorianPhone = regexp.MustCompile(`^(\+225|0)[0-9]{8,10}$`)

// StripSpaces removes every whitespace rune.
func StripSpaces(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

// IsValidIvorianPhone accepts +225 or 0 followed by 8 to 10 digits, ignoring spaces.
func IsValidIvorianPhone(phone string) bool {
	return ivorianPhone.MatchString(StripSpaces(phone))
}

// Phone groups a +225 number as "+225 XX XX XX XX XX". Other numbers are
// returned unchanged.
func Phone(phone string) string {
	compact := StripSpaces(phone)
	if !strings.HasPrefix(compact, ivoryCoastPrefix) {
		return phone
	}
	digits := compact[len(ivoryCoastPrefix):]

	var b strings.Builder
	b.WriteString(ivoryCoastPrefix)
	for i := 0; i < len(digits) && i < 10; i += 2 {
		end := i + 2
		if end > len(digits) {
			end = len(digits)
		}
		b.WriteByte(' ')
		b.WriteString(digits[i:end])
	}
	return b.String()
}

// E164 turns a local 0XXXXXXXXX number into +225XXXXXXXXX for SMS delivery.
func E164(phone string) string {
	compact := StripSpaces(phone)
	if strings.HasPrefix(compact, "+") {
		return compact
	}
	if strings.HasPrefix(compact, "0") {
		return ivoryCoastPrefix + compact[1:]
	}
	return ivoryCoastPrefix + compact
}
