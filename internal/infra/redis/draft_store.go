package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"medha-quiz/internal/domain"
)

// DraftStore keeps attempt drafts as JSON strings: SET draft:{owner}:{quizID} {json} EX ttl.
// Every write refreshes the TTL, so abandoned drafts eventually disappear.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

func (s *DraftStore) GetDraft(ctx context.Context, owner, quizID string) (domain.AttemptDraft, bool, error) {
	raw, err := s.client.Get(ctx, s.key(owner, quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptDraft{}, false, nil
	}
	if err != nil {
		return domain.AttemptDraft{}, false, fmt.Errorf("get draft: %w", err)
	}
	var draft domain.AttemptDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return domain.AttemptDraft{}, false, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, true, nil
}

func (s *DraftStore) PutDraft(ctx context.Context, owner string, draft domain.AttemptDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(owner, draft.QuizID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

func (s *DraftStore) ClearDraft(ctx context.Context, owner, quizID string) error {
	if err := s.client.Del(ctx, s.key(owner, quizID)).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

func (s *DraftStore) key(owner, quizID string) string {
	return "draft:" + owner + ":" + quizID
}
