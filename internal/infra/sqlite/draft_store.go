package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"medha-quiz/internal/domain"
	_ "modernc.org/sqlite" // driver: sqlite
)

// Open opens a SQLite database file and ensures the drafts schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file:medha-drafts.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
  owner TEXT NOT NULL,
  quiz_id TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  time_remaining INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (owner, quiz_id)
);
`

// DraftStore keeps attempt drafts in a local SQLite file so progress survives restarts
// of a single-node deployment.
type DraftStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewDraftStore(db *sql.DB) *DraftStore {
	return &DraftStore{db: db, clock: time.Now}
}

func (s *DraftStore) GetDraft(ctx context.Context, owner, quizID string) (domain.AttemptDraft, bool, error) {
	var (
		rawAnswers string
		remaining  int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT answers_json, time_remaining FROM drafts WHERE owner = ? AND quiz_id = ?`,
		owner, quizID,
	).Scan(&rawAnswers, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttemptDraft{}, false, nil
	}
	if err != nil {
		return domain.AttemptDraft{}, false, fmt.Errorf("get draft: %w", err)
	}

	draft := domain.AttemptDraft{QuizID: quizID, TimeRemainingSeconds: remaining}
	if err := json.Unmarshal([]byte(rawAnswers), &draft.Answers); err != nil {
		return domain.AttemptDraft{}, false, fmt.Errorf("unmarshal draft answers: %w", err)
	}
	return draft, true, nil
}

func (s *DraftStore) PutDraft(ctx context.Context, owner string, draft domain.AttemptDraft) error {
	answers := draft.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal draft answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO drafts (owner, quiz_id, answers_json, time_remaining, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (owner, quiz_id) DO UPDATE SET
  answers_json = excluded.answers_json,
  time_remaining = excluded.time_remaining,
  updated_at = excluded.updated_at`,
		owner, draft.QuizID, string(raw), draft.TimeRemainingSeconds, s.clock().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

func (s *DraftStore) ClearDraft(ctx context.Context, owner, quizID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE owner = ? AND quiz_id = ?`, owner, quizID); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
