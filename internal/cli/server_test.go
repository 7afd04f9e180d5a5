package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"medha-quiz/internal/config"
	"medha-quiz/internal/domain"
	"medha-quiz/internal/infra/memory"
	redisstore "medha-quiz/internal/infra/redis"
	"medha-quiz/internal/infra/sqlite"
)

func TestOpenDraftsDefaultsToMemory(t *testing.T) {
	drafts, closeDrafts, err := openDrafts(context.Background(), config.Config{}, nil)
	if err != nil {
		t.Fatalf("openDrafts: %v", err)
	}
	defer closeDrafts()
	if _, ok := drafts.(*memory.DraftStore); !ok {
		t.Fatalf("expected memory drafts, got %T", drafts)
	}
}

func TestOpenDraftsSQLite(t *testing.T) {
	cfg := config.Config{}
	cfg.Drafts.Backend = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "drafts.db")

	ctx := context.Background()
	drafts, closeDrafts, err := openDrafts(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("openDrafts: %v", err)
	}
	defer closeDrafts()
	if _, ok := drafts.(*sqlite.DraftStore); !ok {
		t.Fatalf("expected sqlite drafts, got %T", drafts)
	}

	draft := domain.AttemptDraft{QuizID: "quiz-1", Answers: map[string]string{"q1": "4"}, TimeRemainingSeconds: 30}
	if err := drafts.PutDraft(ctx, "alice", draft); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, ok, err := drafts.GetDraft(ctx, "alice", "quiz-1"); err != nil || !ok || got.Answers["q1"] != "4" {
		t.Fatalf("get: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestSampleQuizzesServeDemo(t *testing.T) {
	loader := memory.NewStaticQuizLoader(sampleQuizzes())
	quiz, err := loader.LoadDemo(context.Background(), "science")
	if err != nil {
		t.Fatalf("LoadDemo: %v", err)
	}
	if !quiz.IsDemo || len(quiz.Questions) == 0 {
		t.Fatalf("unexpected demo quiz %+v", quiz)
	}
	if _, err := loader.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("LoadQuiz: %v", err)
	}
}

func TestResolvePortPrefersFlagThenConfig(t *testing.T) {
	cfg := config.Config{}
	if got := resolvePort("", cfg); got != "8080" {
		t.Fatalf("default port = %q", got)
	}
	cfg.Server.Port = "9090"
	if got := resolvePort("", cfg); got != "9090" {
		t.Fatalf("config port = %q", got)
	}
	if got := resolvePort("7070", cfg); got != "7070" {
		t.Fatalf("flag port = %q", got)
	}
}

func TestRootPortFlagDefaultsEmpty(t *testing.T) {
	t.Setenv("PORT", "")
	flag := newRootCmd().PersistentFlags().Lookup("port")
	if flag == nil || flag.DefValue != "" {
		t.Fatalf("expected empty port default so server.port applies, got %+v", flag)
	}
	t.Setenv("PORT", "6060")
	if got := newRootCmd().PersistentFlags().Lookup("port").DefValue; got != "6060" {
		t.Fatalf("PORT default = %q", got)
	}
}

func TestSessionStoresSweepInBackground(t *testing.T) {
	for _, store := range []interface{}{
		memory.NewSessionStore(time.Minute),
		redisstore.NewSessionStore(nil, time.Minute),
	} {
		if _, ok := store.(sweeper); !ok {
			t.Fatalf("%T should sweep in the background", store)
		}
	}
}
