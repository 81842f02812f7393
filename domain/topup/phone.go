package topup

import (
	"fmt"
	"strings"
)

const subscriberDigits = 9

// NormalizePhone keeps the last nine digits of raw and prefixes countryCode.
// Separators and a leading "+" are ignored; fewer than nine digits is rejected
// rather than padded into a wrong number.
func NormalizePhone(raw, countryCode string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) < subscriberDigits {
		return "", fmt.Errorf("%w: number %q has fewer than %d digits", ErrValidation, raw, subscriberDigits)
	}
	return countryCode + d[len(d)-subscriberDigits:], nil
}
