package notify

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone converts a stored North American phone number to E.164.
// Punctuation is dropped, a bare 7-digit local number gets defaultAreaCode,
// and the +1 country code is added when missing.
func NormalizePhone(raw, defaultAreaCode string) (string, error) {
	hasPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")

	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if hasPlus {
		if len(digits) < 8 {
			return "", fmt.Errorf("phone number %q is too short", raw)
		}
		return "+" + digits, nil
	}

	switch len(digits) {
	case 7:
		if defaultAreaCode == "" {
			return "", fmt.Errorf("phone number %q has no area code", raw)
		}
		return "+1" + defaultAreaCode + digits, nil
	case 10:
		return "+1" + digits, nil
	case 11:
		if digits[0] == '1' {
			return "+" + digits, nil
		}
	}
	return "", fmt.Errorf("unrecognised phone number %q", raw)
}
