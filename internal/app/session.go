package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"medha-quiz/internal/domain"
)

// State is the lifecycle position of a QuizSession.
type State string

const (
	StateLoading    State = "loading"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions can happen (a failed submission can still be retried).
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateFailed
}

const (
	triggerManual = "manual"
	triggerTimer  = "timer"
	triggerRetry  = "retry"
)

// Dependencies are the collaborators a session calls into. Drafts and Renderer may be nil.
type Dependencies struct {
	Catalog  QuizCatalog
	Results  ResultStore
	Drafts   DraftStore
	Renderer CertificateRenderer
}

// SessionOption customizes a QuizSession.
type SessionOption func(*QuizSession)

// WithTickSource replaces the one-second interval ticker.
func WithTickSource(ts TickSource) SessionOption {
	return func(s *QuizSession) { s.ticks = ts }
}

// WithRand fixes the shuffle source (tests).
func WithRand(rnd *rand.Rand) SessionOption {
	return func(s *QuizSession) { s.rnd = rnd }
}

// WithLogger sets the structured logger.
func WithLogger(log *logrus.Entry) SessionOption {
	return func(s *QuizSession) { s.log = log }
}

// WithRecorder wires lifecycle metrics.
func WithRecorder(rec Recorder) SessionOption {
	return func(s *QuizSession) { s.rec = rec }
}

// WithClock allows deterministic snapshot timestamps in tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *QuizSession) { s.now = now }
}

// Snapshot is a point-in-time view of a session, safe to hand to other goroutines.
type Snapshot struct {
	State                State                 `json:"state"`
	QuizID               string                `json:"quizId"`
	Title                string                `json:"title"`
	Demo                 bool                  `json:"demo"`
	TimeRemainingSeconds int                   `json:"timeRemaining"`
	Answers              map[string]string     `json:"answers"`
	QuestionOrder        []string              `json:"questionOrder"`
	Result               *domain.AttemptResult `json:"result,omitempty"`
	Error                string                `json:"error,omitempty"`
	Disposed             bool                  `json:"disposed"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// QuizSession owns one quiz attempt from load to scored submission.
type QuizSession struct {
	deps    Dependencies
	student domain.Student
	ticks   TickSource
	rnd     *rand.Rand
	log     *logrus.Entry
	rec     Recorder
	now     func() time.Time

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	disposed    bool
	settledAt   time.Time
	closed      bool
	state       State
	quiz        domain.Quiz
	order       []string
	answers     map[string]string
	remaining   int
	result      *domain.AttemptResult
	stored      *domain.StoredResult
	err         error
	stopTimer   func()
	subscribers map[chan Snapshot]struct{}
}

// NewQuizSession builds a session in the Loading state.
func NewQuizSession(deps Dependencies, student domain.Student, opts ...SessionOption) *QuizSession {
	s := &QuizSession{
		deps:        deps,
		student:     student,
		ticks:       NewIntervalTicker(time.Second),
		rec:         noopRecorder{},
		now:         time.Now,
		state:       StateLoading,
		answers:     make(map[string]string),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("student", student.DisplayName())
	return s
}

// Start fetches the quiz, fixes the question order and starts the countdown.
// A zero duration submits immediately; the submission outcome is returned.
func (s *QuizSession) Start(ctx context.Context, ref domain.QuizRef) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	s.started = true
	// Timer-driven work must outlive the request that started the attempt.
	s.ctx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	quiz, err := s.fetch(ctx, ref)

	s.mu.Lock()
	if err != nil {
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}
	if s.disposed {
		s.failLocked(domain.ErrSessionDisposed)
		s.mu.Unlock()
		return domain.ErrSessionDisposed
	}

	quiz.Questions = Shuffle(s.rnd, quiz.Questions)
	s.quiz = quiz
	s.order = make([]string, len(quiz.Questions))
	for i, q := range quiz.Questions {
		s.order[i] = q.ID
	}
	s.remaining = quiz.DurationSeconds
	s.log = s.log.WithField("quiz_id", quiz.ID)
	if !quiz.IsDemo {
		s.restoreDraftLocked()
	}
	s.state = StateActive
	s.rec.SessionStarted(s.modeLocked())
	s.log.WithFields(logrus.Fields{
		"questions": len(quiz.Questions),
		"remaining": s.remaining,
	}).Info("attempt started")

	if s.remaining <= 0 {
		s.broadcastLocked()
		s.mu.Unlock()
		return s.submit(s.ctx, triggerTimer)
	}
	s.stopTimer = s.ticks.Start(s.onTick)
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

func (s *QuizSession) fetch(ctx context.Context, ref domain.QuizRef) (domain.Quiz, error) {
	var (
		quiz domain.Quiz
		err  error
	)
	if ref.Demo {
		quiz, err = s.deps.Catalog.FetchDemo(ctx, ref.Category)
	} else {
		quiz, err = s.deps.Catalog.FetchByID(ctx, ref.ID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	if len(quiz.Questions) == 0 {
		return domain.Quiz{}, domain.ErrQuizEmpty
	}
	if ref.Demo {
		quiz.IsDemo = true
	}
	return quiz, nil
}

func (s *QuizSession) restoreDraftLocked() {
	if s.deps.Drafts == nil {
		return
	}
	draft, ok, err := s.deps.Drafts.Get(s.ctx, s.quiz.ID)
	if err != nil {
		s.log.WithError(err).Warn("draft lookup failed, starting fresh")
		return
	}
	if !ok || draft.QuizID != s.quiz.ID {
		return
	}
	for qid, option := range draft.Answers {
		if _, known := s.questionLocked(qid); known {
			s.answers[qid] = option
		}
	}
	remaining := draft.TimeRemainingSeconds
	if remaining < 0 {
		remaining = 0
	}
	if remaining > s.quiz.DurationSeconds {
		remaining = s.quiz.DurationSeconds
	}
	s.remaining = remaining
	s.log.WithField("remaining", remaining).Info("attempt resumed from draft")
}

// SelectAnswer records the chosen option for a question; the last call wins.
// Outside the Active state, or once disposed, it is silently ignored.
func (s *QuizSession) SelectAnswer(ctx context.Context, questionID, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.disposed {
		return nil
	}
	q, ok := s.questionLocked(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if !hasOption(q, option) {
		return domain.ErrOptionNotFound
	}
	s.answers[questionID] = option
	s.saveDraftLocked(ctx)
	s.broadcastLocked()
	return nil
}

// Tick advances the countdown by one second and auto-submits when it reaches zero.
// Calling it outside the Active state is a programming error and returns ErrNotActive.
func (s *QuizSession) Tick() error {
	s.mu.Lock()
	if s.state != StateActive || s.disposed {
		s.mu.Unlock()
		return domain.ErrNotActive
	}
	s.remaining--
	if s.remaining < 0 {
		s.remaining = 0
	}
	s.saveDraftLocked(s.ctx)
	expired := s.remaining == 0
	s.broadcastLocked()
	s.mu.Unlock()

	if expired {
		return s.submit(s.ctx, triggerTimer)
	}
	return nil
}

func (s *QuizSession) onTick() {
	if err := s.Tick(); err != nil && !errors.Is(err, domain.ErrNotActive) {
		s.log.WithError(err).Warn("auto submit failed")
	}
}

// Submit grades the attempt and, for non-demo attempts, persists it.
// Once the session has left Active, or was disposed, it is a no-op.
func (s *QuizSession) Submit(ctx context.Context) error {
	return s.submit(ctx, triggerManual)
}

func (s *QuizSession) submit(ctx context.Context, trigger string) error {
	s.mu.Lock()
	if s.state != StateActive || s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateSubmitting
	s.leaveActiveLocked()

	result := Score(s.quiz.Questions, s.answers, s.quiz.DurationSeconds, s.remaining)
	s.result = &result
	mode := s.modeLocked()
	s.rec.SessionSubmitted(mode, trigger, result.TimeTakenSeconds)
	s.log.WithFields(logrus.Fields{
		"trigger": trigger,
		"score":   result.Score,
		"total":   result.Total,
	}).Info("attempt graded")

	if s.quiz.IsDemo {
		s.state = StateSubmitted
		s.settledAt = s.now()
		s.broadcastLocked()
		s.mu.Unlock()
		return nil
	}
	submission := s.submissionLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	return s.persist(ctx, submission)
}

// RetrySubmit resends the already computed result after a persistence failure.
func (s *QuizSession) RetrySubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateFailed || s.result == nil || !errors.Is(s.err, domain.ErrPersistenceFailure) {
		s.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	s.state = StateSubmitting
	s.err = nil
	submission := s.submissionLocked()
	s.rec.SessionSubmitted(s.modeLocked(), triggerRetry, s.result.TimeTakenSeconds)
	s.log.WithField("trigger", triggerRetry).Info("retrying result submission")
	s.broadcastLocked()
	s.mu.Unlock()

	return s.persist(ctx, submission)
}

func (s *QuizSession) persist(ctx context.Context, submission domain.Submission) error {
	stored, err := s.deps.Results.SubmitResult(ctx, submission)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.settledAt = s.now()
		s.err = fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
		s.rec.PersistenceFailed()
		s.log.WithError(err).Error("result submission failed, draft kept")
		s.broadcastLocked()
		return s.err
	}
	s.stored = &stored
	s.state = StateSubmitted
	s.settledAt = s.now()
	if s.deps.Drafts != nil {
		if err := s.deps.Drafts.Clear(s.ctx, s.quiz.ID); err != nil {
			s.log.WithError(err).Warn("draft clear failed")
		}
	}
	s.log.WithField("result_id", stored.ID).Info("result stored")
	s.broadcastLocked()
	return nil
}

func (s *QuizSession) submissionLocked() domain.Submission {
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return domain.Submission{
		QuizID:           s.quiz.ID,
		Student:          s.student,
		Answers:          answers,
		Score:            s.result.Score,
		Total:            s.result.Total,
		TimeTakenSeconds: s.result.TimeTakenSeconds,
		QuestionOrder:    append([]string(nil), s.order...),
		ScoredAnswers:    s.result.ScoredAnswers,
	}
}

// CurrentResult returns the graded result once submitted. After a persistence failure
// the computed result is still returned so it can be displayed.
func (s *QuizSession) CurrentResult() (domain.AttemptResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.AttemptResult{}, false
	}
	if s.state == StateSubmitted || (s.state == StateFailed && errors.Is(s.err, domain.ErrPersistenceFailure)) {
		return *s.result, true
	}
	return domain.AttemptResult{}, false
}

// StoredResult returns the record from the result store, if persistence succeeded.
func (s *QuizSession) StoredResult() (domain.StoredResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		return domain.StoredResult{}, false
	}
	return *s.stored, true
}

// CertificateEligible reports whether the submitted result passes the quiz's certificate policy.
func (s *QuizSession) CertificateEligible() bool {
	result, ok := s.CurrentResult()
	if !ok {
		return false
	}
	s.mu.Lock()
	policy := s.quiz.Certificate
	s.mu.Unlock()
	return CertificateEligible(policy, result.Score)
}

// Certificate renders the certificate for an eligible attempt into w.
func (s *QuizSession) Certificate(ctx context.Context, w io.Writer) error {
	if s.deps.Renderer == nil || !s.CertificateEligible() {
		return domain.ErrNotEligible
	}
	result, _ := s.CurrentResult()
	s.mu.Lock()
	quiz := s.quiz
	s.mu.Unlock()
	return s.deps.Renderer.Render(ctx, w, quiz, s.student, result)
}

// Dispose stops the timer and closes subscriptions. Safe to call multiple times.
func (s *QuizSession) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	if s.state != StateSubmitted && s.state != StateFailed {
		s.settledAt = s.now()
	}
	if s.state == StateActive {
		s.leaveActiveLocked()
	}
	s.stopTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Disposed reports whether the session was torn down.
func (s *QuizSession) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// SettledAt reports when the attempt stopped making progress: it reached Submitted or Failed,
// or was disposed. Session repositories count retention from this point on.
func (s *QuizSession) SettledAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.state == StateSubmitted || s.state == StateFailed {
		return s.settledAt, true
	}
	return time.Time{}, false
}

func (s *QuizSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the session, if any.
func (s *QuizSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Quiz returns the quiz with questions in presentation order.
func (s *QuizSession) Quiz() domain.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz
}

func (s *QuizSession) Student() domain.Student {
	return s.student
}

// QuestionOrder is fixed once the session is active.
func (s *QuizSession) QuestionOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Questions returns answer-free views in presentation order.
func (s *QuizSession) Questions() []domain.QuestionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]domain.QuestionView, 0, len(s.quiz.Questions))
	for _, q := range s.quiz.Questions {
		views = append(views, q.View())
	}
	return views
}

func (s *QuizSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizSession) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *QuizSession) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop the oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *QuizSession) snapshotLocked() Snapshot {
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	snap := Snapshot{
		State:                s.state,
		QuizID:               s.quiz.ID,
		Title:                s.quiz.Title,
		Demo:                 s.quiz.IsDemo,
		TimeRemainingSeconds: s.remaining,
		Answers:              answers,
		QuestionOrder:        append([]string(nil), s.order...),
		Disposed:             s.disposed,
		UpdatedAt:            s.now(),
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *QuizSession) saveDraftLocked(ctx context.Context) {
	if s.quiz.IsDemo || s.deps.Drafts == nil {
		return
	}
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	draft := domain.AttemptDraft{
		QuizID:               s.quiz.ID,
		Answers:              answers,
		TimeRemainingSeconds: s.remaining,
	}
	if err := s.deps.Drafts.Put(ctx, draft); err != nil {
		s.log.WithError(err).Warn("draft save failed")
	}
}

func (s *QuizSession) failLocked(err error) {
	s.state = StateFailed
	s.settledAt = s.now()
	s.err = err
	s.stopTimerLocked()
	s.log.WithError(err).Warn("attempt failed")
	s.broadcastLocked()
}

// leaveActiveLocked cancels the timer and reports the end of the running phase once.
func (s *QuizSession) leaveActiveLocked() {
	s.stopTimerLocked()
	if !s.closed {
		s.closed = true
		s.rec.SessionClosed(s.modeLocked())
	}
}

func (s *QuizSession) stopTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

func (s *QuizSession) questionLocked(questionID string) (domain.Question, bool) {
	for _, q := range s.quiz.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (s *QuizSession) modeLocked() string {
	if s.quiz.IsDemo {
		return "demo"
	}
	return "graded"
}

func hasOption(q domain.Question, option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}
