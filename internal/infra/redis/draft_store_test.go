package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"medha-quiz/internal/app"
	"medha-quiz/internal/domain"
)

func TestDraftStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	drafts := app.ScopeDrafts(NewDraftStore(newClient(mr), time.Hour), "alice")

	if _, ok, err := drafts.Get(ctx, "quiz-1"); err != nil || ok {
		t.Fatalf("expected no draft, ok=%v err=%v", ok, err)
	}

	want := domain.AttemptDraft{QuizID: "quiz-1", Answers: map[string]string{"q1": "A"}, TimeRemainingSeconds: 30}
	if err := drafts.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("draft:alice:quiz-1") {
		t.Fatalf("expected owner scoped key")
	}

	got, ok, err := drafts.Get(ctx, "quiz-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.QuizID != want.QuizID || got.TimeRemainingSeconds != 30 || got.Answers["q1"] != "A" {
		t.Fatalf("unexpected draft %+v", got)
	}

	if err := drafts.Clear(ctx, "quiz-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("draft:alice:quiz-1") {
		t.Fatalf("expected draft removed")
	}
}

func TestDraftStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDraftStore(newClient(mr), time.Minute)
	if err := store.PutDraft(ctx, "alice", domain.AttemptDraft{QuizID: "quiz-1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := store.GetDraft(ctx, "alice", "quiz-1"); ok {
		t.Fatalf("expected draft to expire")
	}
}
