package memory

import (
	"context"
	"sync"

	"medha-quiz/internal/domain"
)

// DraftStore keeps attempt drafts in process memory, partitioned by owner.
type DraftStore struct {
	mu     sync.RWMutex
	drafts map[draftKey]domain.AttemptDraft
}

type draftKey struct {
	owner  string
	quizID string
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[draftKey]domain.AttemptDraft)}
}

func (s *DraftStore) GetDraft(_ context.Context, owner, quizID string) (domain.AttemptDraft, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[draftKey{owner: owner, quizID: quizID}]
	if !ok {
		return domain.AttemptDraft{}, false, nil
	}
	return copyDraft(draft), true, nil
}

func (s *DraftStore) PutDraft(_ context.Context, owner string, draft domain.AttemptDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draftKey{owner: owner, quizID: draft.QuizID}] = copyDraft(draft)
	return nil
}

func (s *DraftStore) ClearDraft(_ context.Context, owner, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey{owner: owner, quizID: quizID})
	return nil
}

func copyDraft(d domain.AttemptDraft) domain.AttemptDraft {
	answers := make(map[string]string, len(d.Answers))
	for k, v := range d.Answers {
		answers[k] = v
	}
	d.Answers = answers
	return d
}
