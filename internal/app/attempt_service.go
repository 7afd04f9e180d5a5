package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"medha-quiz/internal/domain"
)

// SessionRepository abstracts where live and finished attempts are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Save(attemptID string, session *QuizSession)
	Get(attemptID string) (*QuizSession, bool)
	Delete(attemptID string)
}

// AttemptService contains the attempt use cases shared by transports.
type AttemptService struct {
	sessions SessionRepository
	catalog  QuizCatalog
	results  ResultStore
	drafts   DraftBackend
	renderer CertificateRenderer
	log      *logrus.Entry
	opts     []SessionOption
	newID    func() string
}

// ServiceOption customizes an AttemptService.
type ServiceOption func(*AttemptService)

// WithDraftBackend enables draft persistence for graded attempts.
func WithDraftBackend(drafts DraftBackend) ServiceOption {
	return func(s *AttemptService) { s.drafts = drafts }
}

// WithRenderer enables certificate downloads.
func WithRenderer(r CertificateRenderer) ServiceOption {
	return func(s *AttemptService) { s.renderer = r }
}

func WithServiceLogger(log *logrus.Entry) ServiceOption {
	return func(s *AttemptService) { s.log = log }
}

// WithSessionOptions are applied to every session the service creates.
func WithSessionOptions(opts ...SessionOption) ServiceOption {
	return func(s *AttemptService) { s.opts = append(s.opts, opts...) }
}

func NewAttemptService(sessions SessionRepository, catalog QuizCatalog, results ResultStore, opts ...ServiceOption) *AttemptService {
	s := &AttemptService{
		sessions: sessions,
		catalog:  catalog,
		results:  results,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return s
}

// Begin starts a new attempt. Graded quizzes the student already has a result for are refused;
// anonymous students have no identity to check, so they are never refused.
// When the session fails to start it is not registered and the start error is returned.
func (s *AttemptService) Begin(ctx context.Context, ref domain.QuizRef, student domain.Student) (string, *QuizSession, error) {
	if !ref.Demo && student.Username != "" {
		if history, ok := s.results.(AttemptHistory); ok {
			attempted, err := history.HasAttempted(ctx, ref.ID, student.Username)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
			}
			if attempted {
				return "", nil, domain.ErrAlreadyAttempted
			}
		}
	}

	attemptID := s.newID()
	deps := Dependencies{
		Catalog:  s.catalog,
		Results:  s.results,
		Renderer: s.renderer,
	}
	if s.drafts != nil && !ref.Demo {
		deps.Drafts = ScopeDrafts(s.drafts, student.DisplayName())
	}
	log := s.log.WithField("attempt_id", attemptID)
	opts := append([]SessionOption{WithLogger(log)}, s.opts...)
	session := NewQuizSession(deps, student, opts...)

	err := session.Start(ctx, ref)
	if _, graded := session.CurrentResult(); err != nil && !graded {
		session.Dispose()
		return "", nil, err
	}
	s.sessions.Save(attemptID, session)
	// A zero-duration quiz is already graded here; a persistence error is reported alongside the session.
	return attemptID, session, err
}

// Session looks up an attempt.
func (s *AttemptService) Session(attemptID string) (*QuizSession, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *AttemptService) Answer(ctx context.Context, attemptID, questionID, option string) error {
	session, err := s.Session(attemptID)
	if err != nil {
		return err
	}
	return session.SelectAnswer(ctx, questionID, option)
}

func (s *AttemptService) Submit(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	session, err := s.Session(attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	err = session.Submit(ctx)
	result, _ := session.CurrentResult()
	return result, err
}

func (s *AttemptService) Retry(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	session, err := s.Session(attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	err = session.RetrySubmit(ctx)
	result, _ := session.CurrentResult()
	return result, err
}

// Result returns the graded result of an attempt, ErrNotActive while it is still running and
// ErrSessionDisposed once it was released ungraded.
func (s *AttemptService) Result(attemptID string) (domain.AttemptResult, error) {
	session, err := s.Session(attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	result, ok := session.CurrentResult()
	switch {
	case ok:
		return result, nil
	case session.Disposed():
		// released before it was graded; it will never produce a result
		return domain.AttemptResult{}, domain.ErrSessionDisposed
	default:
		return domain.AttemptResult{}, domain.ErrNotActive
	}
}

// Release stops an attempt's timer but keeps it retrievable until the repository expires it.
func (s *AttemptService) Release(attemptID string) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	session.Dispose()
}

// End disposes an attempt and forgets it.
func (s *AttemptService) End(attemptID string) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	session.Dispose()
	s.sessions.Delete(attemptID)
}
