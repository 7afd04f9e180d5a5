package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty is returned when a quiz has no questions to attempt.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrNetworkFailure wraps catalog errors other than not-found.
	ErrNetworkFailure = errors.New("failed to load quiz")
	// ErrPersistenceFailure wraps result store errors; the computed result stays available.
	ErrPersistenceFailure = errors.New("failed to store result")
	// ErrNotActive is returned when an operation needs a running attempt.
	ErrNotActive = errors.New("attempt is not active")
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("attempt already started")
	// ErrSessionDisposed is returned when a session is torn down before it produced a result.
	ErrSessionDisposed = errors.New("attempt disposed")
	// ErrNothingToRetry is returned when there is no failed submission to resend.
	ErrNothingToRetry = errors.New("no failed submission to retry")
	// ErrNotEligible is returned when a certificate is requested for a non-passing attempt.
	ErrNotEligible = errors.New("attempt is not eligible for a certificate")
	// ErrAlreadyAttempted is returned when a student starts a quiz they already have a result for.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrSessionNotFound is returned when an attempt id is unknown or expired.
	ErrSessionNotFound = errors.New("attempt not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option is not offered by the question.
	ErrOptionNotFound = errors.New("option not found")
)
