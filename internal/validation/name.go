package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameRunes = 100

// ValidateName checks the display name shown back to the user and in
// emails. Length counts characters, not bytes.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}

	if utf8.RuneCountInString(name) > maxNameRunes {
		return errors.New("name is too long (max 100 characters)")
	}

	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return errors.New("name contains control characters")
	}

	return nil
}
