package phone

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeE164 converts a raw dialed number into E.164 (+<countrycode><number>).
//
// Heuristics:
// - strip everything that is not a digit (a leading '+' is remembered)
// - "tel:"/"sip:" URI prefixes and URI parameters are dropped
// - bare 10-digit numbers are assumed NANP and prefixed +1
// - 11-digit numbers starting with 1 are NANP with country code
// - anything else with a plausible length keeps its digits as-is
func NormalizeE164(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty phone number")
	}

	// Strip URI scheme and params: "sip:+15551234567@host;user=phone".
	s = strings.TrimPrefix(s, "tel:")
	s = strings.TrimPrefix(s, "sips:")
	s = strings.TrimPrefix(s, "sip:")
	if i := strings.IndexAny(s, "@;?"); i >= 0 {
		s = s[:i]
	}

	hadPlus := strings.HasPrefix(s, "+")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("no digits in phone number %q", raw)
	}

	if !hadPlus {
		switch {
		case len(digits) == 10:
			digits = "1" + digits
		case len(digits) == 11 && strings.HasPrefix(digits, "1"):
			// already carries the NANP country code
		}
	}

	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number length %d", len(digits))
	}
	return "+" + digits, nil
}

// IsE164 reports whether s is already in strict E.164 form.
func IsE164(s string) bool {
	if len(s) < 8 || len(s) > 16 || !strings.HasPrefix(s, "+") {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s[1] != '0'
}
