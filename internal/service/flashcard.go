package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/markdown"
	"github.com/flipwise/flipwise/internal/model"
	"github.com/flipwise/flipwise/internal/repository"
	"github.com/flipwise/flipwise/internal/validation"
	"github.com/google/uuid"
)

const (
	maxSentenceSlots = 5
	minSentenceLen   = 10
	minGeneratedSet  = 3
)

// Card is a question/answer pair as exchanged with clients.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var fallbackCards = []Card{
	{Question: "What is the capital of France?", Answer: "Paris"},
	{Question: "What is 2 + 2?", Answer: "4"},
	{Question: "What is the largest planet in our solar system?", Answer: "Jupiter"},
}

type FlashcardService struct {
	flashcardRepository repository.FlashcardRepository
	parser              *markdown.Parser
	now                 func() time.Time
}

func NewFlashcardService(flashcardRepository repository.FlashcardRepository, parser *markdown.Parser) *FlashcardService {
	return &FlashcardService{
		flashcardRepository: flashcardRepository,
		parser:              parser,
		now:                 time.Now,
	}
}

// Generate builds cards from the first sentences of text. Markdown is
// reduced to plain prose first. Sparse input is padded with general
// knowledge cards.
func (s *FlashcardService) Generate(text string) ([]Card, error) {
	err := validation.ValidateFlashcardSource(text)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	doc, err := s.parser.PlainText([]byte(text))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to parse source text: %w", err))
	}

	cards := make([]Card, 0, maxSentenceSlots+len(fallbackCards))
	sentences := strings.Split(doc.Text, ".")
	for i, sentence := range sentences {
		if i >= maxSentenceSlots {
			break
		}
		sentence = strings.Join(strings.Fields(sentence), " ")
		if len(sentence) <= minSentenceLen {
			continue
		}
		cards = append(cards, Card{
			Question: fmt.Sprintf("What is the main idea of: '%s'?", sentence),
			Answer:   "This sentence discusses: " + sentence,
		})
	}

	if len(cards) < minGeneratedSet {
		cards = append(cards, fallbackCards...)
	}

	return cards, nil
}

// Save stores all cards for the user or none of them.
func (s *FlashcardService) Save(ctx context.Context, userID string, cards []Card) (int, error) {
	if len(cards) == 0 {
		return 0, apperr.Validation("No flashcards provided")
	}
	if len(cards) > validation.MaxFlashcardsPerSave {
		return 0, apperr.Validation(fmt.Sprintf("too many flashcards (max %d)", validation.MaxFlashcardsPerSave))
	}

	now := s.now().UTC()
	rows := make([]model.Flashcard, 0, len(cards))
	for _, c := range cards {
		err := validation.ValidateFlashcard(c.Question, c.Answer)
		if err != nil {
			return 0, apperr.Validation(err.Error())
		}
		rows = append(rows, model.Flashcard{
			ID:        uuid.NewString(),
			UserID:    userID,
			Question:  strings.TrimSpace(c.Question),
			Answer:    strings.TrimSpace(c.Answer),
			CreatedAt: now,
		})
	}

	err := s.flashcardRepository.CreateMany(ctx, rows)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("failed to save flashcards: %w", err))
	}

	return len(rows), nil
}

func (s *FlashcardService) List(ctx context.Context, userID string) ([]model.Flashcard, error) {
	cards, err := s.flashcardRepository.ByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list flashcards: %w", err))
	}
	return cards, nil
}
