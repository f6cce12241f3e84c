// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// ErrInvalid is returned when a number cannot be read as a valid US number.
var ErrInvalid = errors.New("invalid US phone number")

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	number, err := parseUS(input)
	if err != nil {
		return strings.TrimSpace(input)
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// NationalDigits returns the 10-digit national significant number of a US
// phone number, accepting any common formatting and an optional +1 prefix.
func NationalDigits(input string) (string, error) {
	number, err := parseUS(input)
	if err != nil {
		return "", err
	}

	digits := phonenumbers.GetNationalSignificantNumber(number)
	if len(digits) != 10 {
		return "", ErrInvalid
	}
	return digits, nil
}

func parseUS(input string) (*phonenumbers.PhoneNumber, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrInvalid
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return nil, ErrInvalid
	}
	if number.GetCountryCode() != 1 || !phonenumbers.IsValidNumberForRegion(number, defaultRegion) {
		return nil, ErrInvalid
	}
	return number, nil
}

// Display formats a US number as "(856) 888-9080". Unparseable input is
// returned trimmed.
func Display(input string) string {
	number, err := parseUS(input)
	if err != nil {
		return strings.TrimSpace(input)
	}
	return phonenumbers.Format(number, phonenumbers.NATIONAL)
}
