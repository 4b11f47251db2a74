package validation

import (
	"errors"
	"net/mail"
	"strings"
)

const maxEmailLen = 254

// ValidateEmail accepts a bare RFC 5322 address. Display-name forms such as
// "Ann <ann@example.com>" are rejected because the input is stored as is.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}

	if len(email) > maxEmailLen {
		return errors.New("email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address format")
	}

	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return errors.New("email domain must contain a dot")
	}

	return nil
}
