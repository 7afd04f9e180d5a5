package app

import (
	"context"
	"io"

	"medha-quiz/internal/domain"
)

// QuizCatalog loads quiz definitions. Implementations normalize whatever the backing store
// returns into a domain.Quiz with a single canonical ID.
type QuizCatalog interface {
	FetchByID(ctx context.Context, quizID string) (domain.Quiz, error)
	FetchDemo(ctx context.Context, category string) (domain.Quiz, error)
}

// ResultStore persists completed attempts.
type ResultStore interface {
	SubmitResult(ctx context.Context, submission domain.Submission) (domain.StoredResult, error)
}

// AttemptHistory is optionally implemented by result stores that can tell whether a student
// already has a result for a quiz.
type AttemptHistory interface {
	HasAttempted(ctx context.Context, quizID, student string) (bool, error)
}

// DraftStore keeps the in-progress state of one student's attempts, keyed by quiz id.
type DraftStore interface {
	Get(ctx context.Context, quizID string) (domain.AttemptDraft, bool, error)
	Put(ctx context.Context, draft domain.AttemptDraft) error
	Clear(ctx context.Context, quizID string) error
}

// CertificateRenderer writes a downloadable certificate document.
type CertificateRenderer interface {
	Render(ctx context.Context, w io.Writer, quiz domain.Quiz, student domain.Student, result domain.AttemptResult) error
}

// Recorder receives session lifecycle signals (metrics).
type Recorder interface {
	SessionStarted(mode string)
	SessionClosed(mode string)
	SessionSubmitted(mode, trigger string, timeTakenSeconds int)
	PersistenceFailed()
}

type noopRecorder struct{}

func (noopRecorder) SessionStarted(string)               {}
func (noopRecorder) SessionClosed(string)                {}
func (noopRecorder) SessionSubmitted(string, string, int) {}
func (noopRecorder) PersistenceFailed()                  {}
