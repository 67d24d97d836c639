// ABOUTME: Phone number canonicalization into the business primary key
// ABOUTME: The exact rule set here derives the unique key all four sources merge on
package normalize

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for inputs too short or malformed to become a key.
var ErrInvalidPhone = errors.New("invalid phone number")

const minDigits = 6

// Phone turns an arbitrary phone string into the canonical business key.
//
// Rules, in order:
//   - strip every character that is not a digit or '+'
//   - collapse repeated '+' and drop any '+' that is not leading
//   - a '+'-prefixed (already international) number is left untouched
//   - a 10-digit number starting with a French trunk digit (0 then 1-9)
//     is rewritten to its +33 form
//   - anything else is returned as the cleaned digits, with no guessed
//     country code
func Phone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	international := strings.HasPrefix(cleaned, "+")
	digits := strings.ReplaceAll(cleaned, "+", "")
	if len(digits) < minDigits {
		return "", ErrInvalidPhone
	}

	if international {
		return "+" + digits, nil
	}

	if len(digits) == 10 && digits[0] == '0' && digits[1] >= '1' && digits[1] <= '9' {
		return "+33" + digits[1:], nil
	}

	return digits, nil
}

// twoDigitCodes holds the assigned two-digit country calling codes. One-digit
// codes are 1 and 7; everything else is three digits.
var twoDigitCodes = map[string]bool{
	"20": true, "27": true, "30": true, "31": true, "32": true, "33": true,
	"34": true, "36": true, "39": true, "40": true, "41": true, "43": true,
	"44": true, "45": true, "46": true, "47": true, "48": true, "49": true,
	"51": true, "52": true, "53": true, "54": true, "55": true, "56": true,
	"57": true, "58": true, "60": true, "61": true, "62": true, "63": true,
	"64": true, "65": true, "66": true, "81": true, "82": true, "84": true,
	"86": true, "90": true, "91": true, "92": true, "93": true, "94": true,
	"95": true, "98": true,
}

// CountryPrefix extracts the country-calling-code prefix ("+33", "+1", ...)
// from a normalized phone. Numbers without an international prefix yield "".
func CountryPrefix(normalized string) string {
	if !strings.HasPrefix(normalized, "+") {
		return ""
	}
	digits := normalized[1:]
	if digits == "" {
		return ""
	}
	if digits[0] == '1' || digits[0] == '7' {
		return "+" + digits[:1]
	}
	if len(digits) >= 2 && twoDigitCodes[digits[:2]] {
		return "+" + digits[:2]
	}
	if len(digits) >= 3 {
		return "+" + digits[:3]
	}
	return "+" + digits
}
