package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"medha-quiz/internal/app"
	"medha-quiz/internal/domain"
)

func openTestDB(t *testing.T) *DraftStore {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDraftStore(db)
}

func TestDraftStoreUpsertAndClear(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)
	drafts := app.ScopeDrafts(store, "alice")

	if _, ok, err := drafts.Get(ctx, "quiz-1"); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	if err := drafts.Put(ctx, domain.AttemptDraft{QuizID: "quiz-1", Answers: map[string]string{"q1": "A"}, TimeRemainingSeconds: 50}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := drafts.Put(ctx, domain.AttemptDraft{QuizID: "quiz-1", Answers: map[string]string{"q1": "B", "q2": "C"}, TimeRemainingSeconds: 40}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, ok, err := drafts.Get(ctx, "quiz-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.TimeRemainingSeconds != 40 || got.Answers["q1"] != "B" || got.Answers["q2"] != "C" {
		t.Fatalf("expected latest draft, got %+v", got)
	}

	if err := drafts.Clear(ctx, "quiz-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := drafts.Get(ctx, "quiz-1"); ok {
		t.Fatalf("expected draft cleared")
	}
}

func TestDraftStorePartitionsByOwner(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t)

	if err := store.PutDraft(ctx, "alice", domain.AttemptDraft{QuizID: "quiz-1", TimeRemainingSeconds: 10}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := store.GetDraft(ctx, "bob", "quiz-1"); ok {
		t.Fatalf("expected bob to see no draft")
	}
	got, ok, err := store.GetDraft(ctx, "alice", "quiz-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Answers == nil || len(got.Answers) != 0 {
		t.Fatalf("expected empty answers map, got %#v", got.Answers)
	}
}
