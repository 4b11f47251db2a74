package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxFlashcardsPerSave  = 200
	MaxFlashcardFieldLen  = 2000
	MaxFlashcardSourceLen = 100_000
)

// ValidateFlashcard checks one question/answer pair.
func ValidateFlashcard(question, answer string) error {
	if strings.TrimSpace(question) == "" {
		return errors.New("flashcard question is required")
	}
	if strings.TrimSpace(answer) == "" {
		return errors.New("flashcard answer is required")
	}
	if utf8.RuneCountInString(question) > MaxFlashcardFieldLen || utf8.RuneCountInString(answer) > MaxFlashcardFieldLen {
		return fmt.Errorf("flashcard fields must not exceed %d characters", MaxFlashcardFieldLen)
	}
	return nil
}

// ValidateFlashcardSource checks the text flashcards are generated from.
func ValidateFlashcardSource(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("no text provided")
	}
	if len(text) > MaxFlashcardSourceLen {
		return fmt.Errorf("text is too long (max %d bytes)", MaxFlashcardSourceLen)
	}
	return nil
}
