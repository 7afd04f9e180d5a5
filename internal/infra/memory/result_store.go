package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"medha-quiz/internal/domain"
)

// ResultStore is an in-memory result store; it also answers attempt history lookups.
type ResultStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	results []domain.StoredResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{clock: time.Now}
}

func (s *ResultStore) SubmitResult(_ context.Context, sub domain.Submission) (domain.StoredResult, error) {
	stored := domain.StoredResult{
		ID:               uuid.NewString(),
		QuizID:           sub.QuizID,
		StudentName:      sub.Student.DisplayName(),
		Score:            sub.Score,
		Total:            sub.Total,
		TimeTakenSeconds: sub.TimeTakenSeconds,
		QuestionOrder:    append([]string(nil), sub.QuestionOrder...),
		Answers:          append([]domain.ScoredAnswer(nil), sub.ScoredAnswers...),
		AttemptedAt:      s.clock(),
	}
	s.mu.Lock()
	s.results = append(s.results, stored)
	s.mu.Unlock()
	return stored, nil
}

func (s *ResultStore) HasAttempted(_ context.Context, quizID, student string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.QuizID == quizID && r.StudentName == student {
			return true, nil
		}
	}
	return false, nil
}
