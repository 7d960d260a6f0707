package canonical

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone is returned when a string cannot become a NANP number.
var ErrInvalidPhone = errors.New("invalid phone number")

const nanpDigits = 10

// NormalizePhone converts a free-form North American phone string to the
// +1-XXX-XXX-XXXX form. The area code must not start with 0 or 1, and
// after stripping punctuation and an optional leading country code the
// number must be exactly ten digits.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	number := digits.String()
	if len(number) == nanpDigits+1 && number[0] == '1' {
		number = number[1:]
	}
	if len(number) != nanpDigits {
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalidPhone, raw, len(number))
	}
	if number[0] == '0' || number[0] == '1' {
		return "", fmt.Errorf("%w: area code cannot start with %c", ErrInvalidPhone, number[0])
	}

	return fmt.Sprintf("+1-%s-%s-%s", number[0:3], number[3:6], number[6:10]), nil
}
