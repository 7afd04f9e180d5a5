package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"medha-quiz/internal/domain"
)

// QuizLoader loads quiz JSONB from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		id  string
		raw []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT id, data FROM quizzes WHERE id=$1`, quizID).Scan(&id, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(id, raw)
}

// LoadDemo picks a random quiz flagged isDemo whose categories contain category.
func (l *QuizLoader) LoadDemo(ctx context.Context, category string) (domain.Quiz, error) {
	var (
		id  string
		raw []byte
	)
	err := l.pool.QueryRow(ctx, `
SELECT id, data FROM quizzes
WHERE COALESCE((data->>'isDemo')::boolean, false)
  AND EXISTS (
    SELECT 1 FROM jsonb_array_elements_text(COALESCE(data->'categories', '[]'::jsonb)) c
    WHERE lower(c) = lower($1)
  )
ORDER BY random()
LIMIT 1`, category).Scan(&id, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load demo quiz: %w", err)
	}
	return decodeQuiz(id, raw)
}

func decodeQuiz(id string, raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	// the row key wins over whatever id the document carries
	quiz.ID = id
	return quiz, nil
}
