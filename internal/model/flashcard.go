package model

import (
	"time"
)

type Flashcard struct {
	ID        string    `db:"id" json:"id,omitempty"`
	UserID    string    `db:"user_id" json:"-"`
	Question  string    `db:"question" json:"question"`
	Answer    string    `db:"answer" json:"answer"`
	CreatedAt time.Time `db:"created_at" json:"created_at,omitempty"`
}
