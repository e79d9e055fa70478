// Package phone normalizes guest phone numbers: digits-only for matching
// in the record store, E.164 for SMS dispatch.
package phone

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("invalid phone number")

// Digits strips everything but decimal digits.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ValidDigits(digits string) bool {
	return len(digits) >= 10 && len(digits) <= 15
}

// E164 renders a raw number in E.164 form. Numbers without an explicit
// country prefix get defaultCountry (a dial code such as "1") when they
// look like national ten-digit numbers.
func E164(raw, defaultCountry string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	digits := Digits(trimmed)
	if !ValidDigits(digits) {
		return "", ErrInvalid
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits, nil
	}
	if len(digits) == 10 && defaultCountry != "" {
		return "+" + defaultCountry + digits, nil
	}
	return "+" + digits, nil
}
