package validation

import (
	"errors"
)

// ValidatePassword checks the password can be hashed without loss.
// Strength rules are not enforced.
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password is required")
	}

	// bcrypt rejects input longer than 72 bytes
	if len(password) > 72 {
		return errors.New("password must not exceed 72 bytes")
	}

	return nil
}
