package guards

import (
	"errors"
	"strings"
	"unicode"
)

var ErrInvalidCNIC = errors.New("CNIC must have 13 digits")

// NormalizeCNIC accepts 13 digits with or without dashes and spaces and
// returns the XXXXX-XXXXXXX-X form.
func NormalizeCNIC(raw string) (string, error) {
	digits := make([]rune, 0, 13)
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits = append(digits, r)
		case r == '-' || unicode.IsSpace(r):
		default:
			return "", ErrInvalidCNIC
		}
	}
	if len(digits) != 13 {
		return "", ErrInvalidCNIC
	}
	d := string(digits)
	return d[:5] + "-" + d[5:12] + "-" + d[12:], nil
}

// normalizeCode upper-cases and trims a guard code.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
