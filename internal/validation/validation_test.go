package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid", "a@x.com", false},
		{"empty", "", true},
		{"missing at", "ax.com", true},
		{"too long", strings.Repeat("a", 250) + "@x.com", true},
		{"display name", "Ann <a@x.com>", true},
		{"no dot in domain", "a@localhost", true},
		{"plus tag", "a+tag@x.co.ke", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Ann"))
	assert.Error(t, ValidateName("   "))
	assert.Error(t, ValidateName(strings.Repeat("n", 101)))
	assert.NoError(t, ValidateName(strings.Repeat("é", 100)))
	assert.Error(t, ValidateName("Ann\r\nBcc: x@example.com"))
}

func TestValidatePassword(t *testing.T) {
	// Short passwords are accepted.
	assert.NoError(t, ValidatePassword("pw"))
	assert.NoError(t, ValidatePassword(strings.Repeat("p", 72)))
	assert.Error(t, ValidatePassword(""))
	assert.Error(t, ValidatePassword(strings.Repeat("p", 73)))
}

func TestValidateFlashcard(t *testing.T) {
	assert.NoError(t, ValidateFlashcard("Q", "A"))
	assert.Error(t, ValidateFlashcard(" ", "A"))
	assert.Error(t, ValidateFlashcard("Q", ""))
	assert.Error(t, ValidateFlashcard(strings.Repeat("q", MaxFlashcardFieldLen+1), "A"))
}

func TestValidateFlashcardSource(t *testing.T) {
	assert.NoError(t, ValidateFlashcardSource("Some text."))
	assert.Error(t, ValidateFlashcardSource("  \n"))
	assert.Error(t, ValidateFlashcardSource(strings.Repeat("x", MaxFlashcardSourceLen+1)))
}
