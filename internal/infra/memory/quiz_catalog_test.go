package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"medha-quiz/internal/domain"
)

func TestQuizCatalogCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	catalog := NewQuizCatalog(loader, time.Minute)

	if _, err := catalog.FetchByID(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("fetch quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := catalog.FetchByID(context.Background(), " quiz-1 "); err != nil {
		t.Fatalf("fetch quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizCatalogReturnsIndependentCopies(t *testing.T) {
	catalog := NewQuizCatalog(NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}), time.Minute)

	first, _ := catalog.FetchByID(context.Background(), "quiz-1")
	first.Questions[0], first.Questions[1] = first.Questions[1], first.Questions[0]

	second, _ := catalog.FetchByID(context.Background(), "quiz-1")
	if second.Questions[0].ID != "q1" {
		t.Fatalf("cached quiz was mutated through a fetched copy")
	}
}

func TestQuizCatalogNotFound(t *testing.T) {
	catalog := NewQuizCatalog(NewStaticQuizLoader(nil), time.Minute)
	if _, err := catalog.FetchByID(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := catalog.FetchByID(context.Background(), "  "); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found for blank id, got %v", err)
	}
}

func TestQuizCatalogDemoByCategory(t *testing.T) {
	demo := sampleQuiz()
	demo.ID = "demo-1"
	demo.IsDemo = true
	demo.Categories = []string{"Science"}
	catalog := NewQuizCatalog(NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": sampleQuiz(),
		"demo-1": demo,
	}), time.Minute)

	quiz, err := catalog.FetchDemo(context.Background(), "SCIENCE")
	if err != nil {
		t.Fatalf("fetch demo: %v", err)
	}
	if quiz.ID != "demo-1" || !quiz.IsDemo {
		t.Fatalf("unexpected demo quiz %+v", quiz)
	}
	if _, err := catalog.FetchDemo(context.Background(), "history"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found for unknown category, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Basics",
		Questions: []domain.Question{
			{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: "4"},
			{ID: "q2", Text: "Which planet is red?", Options: []string{"Venus", "Mars"}, CorrectAnswer: "Mars"},
		},
		DurationSeconds: 60,
	}
}
