package repository

import (
	"context"

	"github.com/flipwise/flipwise/internal/db"
	"github.com/flipwise/flipwise/internal/model"
	"github.com/jmoiron/sqlx"
)

type FlashcardRepository interface {
	CreateMany(ctx context.Context, cards []model.Flashcard) error
	ByUserID(ctx context.Context, userID string) ([]model.Flashcard, error)
}

type flashcardRepository struct {
	db *sqlx.DB
}

func NewFlashcardRepository(db *sqlx.DB) FlashcardRepository {
	return &flashcardRepository{db: db}
}

// CreateMany stores all cards or none.
func (r *flashcardRepository) CreateMany(ctx context.Context, cards []model.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}

	query := `INSERT INTO flashcards (id, user_id, question, answer, created_at) VALUES ($1, $2, $3, $4, $5)`

	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, c := range cards {
			_, err := tx.ExecContext(ctx, query, c.ID, c.UserID, c.Question, c.Answer, c.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *flashcardRepository) ByUserID(ctx context.Context, userID string) ([]model.Flashcard, error) {
	cards := []model.Flashcard{}
	query := `SELECT id, user_id, question, answer, created_at FROM flashcards WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	err := r.db.SelectContext(ctx, &cards, query, userID)
	if err != nil {
		return nil, err
	}

	return cards, nil
}
