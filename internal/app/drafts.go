package app

import (
	"context"

	"medha-quiz/internal/domain"
)

// DraftBackend stores drafts for many students; owner partitions the key space.
type DraftBackend interface {
	GetDraft(ctx context.Context, owner, quizID string) (domain.AttemptDraft, bool, error)
	PutDraft(ctx context.Context, owner string, draft domain.AttemptDraft) error
	ClearDraft(ctx context.Context, owner, quizID string) error
}

// ScopeDrafts narrows a shared backend to the drafts of one owner.
func ScopeDrafts(backend DraftBackend, owner string) DraftStore {
	return scopedDrafts{backend: backend, owner: owner}
}

type scopedDrafts struct {
	backend DraftBackend
	owner   string
}

func (d scopedDrafts) Get(ctx context.Context, quizID string) (domain.AttemptDraft, bool, error) {
	return d.backend.GetDraft(ctx, d.owner, quizID)
}

func (d scopedDrafts) Put(ctx context.Context, draft domain.AttemptDraft) error {
	return d.backend.PutDraft(ctx, d.owner, draft)
}

func (d scopedDrafts) Clear(ctx context.Context, quizID string) error {
	return d.backend.ClearDraft(ctx, d.owner, quizID)
}
