package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"medha-quiz/internal/domain"
)

// ResultStore persists graded attempts into the results table.
type ResultStore struct {
	pool  *pgxpool.Pool
	newID func() string
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool, newID: uuid.NewString}
}

func (s *ResultStore) SubmitResult(ctx context.Context, sub domain.Submission) (domain.StoredResult, error) {
	order := sub.QuestionOrder
	if order == nil {
		order = []string{}
	}
	answers := sub.ScoredAnswers
	if answers == nil {
		answers = []domain.ScoredAnswer{}
	}
	rawOrder, err := json.Marshal(order)
	if err != nil {
		return domain.StoredResult{}, fmt.Errorf("marshal question order: %w", err)
	}
	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return domain.StoredResult{}, fmt.Errorf("marshal answers: %w", err)
	}

	stored := domain.StoredResult{
		ID:               s.newID(),
		QuizID:           sub.QuizID,
		StudentName:      sub.Student.DisplayName(),
		Score:            sub.Score,
		Total:            sub.Total,
		TimeTakenSeconds: sub.TimeTakenSeconds,
		QuestionOrder:    order,
		Answers:          answers,
	}
	err = s.pool.QueryRow(ctx, `
INSERT INTO results (id, quiz_id, student_name, score, total, time_taken, question_order, answers)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
RETURNING attempted_at`,
		stored.ID, stored.QuizID, stored.StudentName, stored.Score, stored.Total, stored.TimeTakenSeconds,
		string(rawOrder), string(rawAnswers),
	).Scan(&stored.AttemptedAt)
	if err != nil {
		return domain.StoredResult{}, fmt.Errorf("insert result: %w", err)
	}
	return stored, nil
}

func (s *ResultStore) HasAttempted(ctx context.Context, quizID, student string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE quiz_id=$1 AND student_name=$2)`,
		quizID, student,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attempt history: %w", err)
	}
	return exists, nil
}
