// Package invitecode normalizes and validates crew invite codes.
//
// A code is stored and compared in its normalized form: trimmed and
// uppercased. Valid codes are 3-20 characters from [A-Z0-9-_].
package invitecode

import (
	"errors"
	"strings"
)

const (
	MinLen = 3
	MaxLen = 20
)

// ErrInvalidFormat is returned for codes that fail local validation.
// It never involves a network call.
var ErrInvalidFormat = errors.New("invite code must be 3-20 letters, digits, dashes, or underscores")

// Normalize returns the canonical form of a raw code: whitespace trimmed
// and letters uppercased. It does not validate.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate checks a normalized code against the allowed length and
// charset. Returns ErrInvalidFormat on any violation.
func Validate(code string) error {
	if len(code) < MinLen || len(code) > MaxLen {
		return ErrInvalidFormat
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return ErrInvalidFormat
		}
	}
	return nil
}
