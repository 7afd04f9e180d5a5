package domain

import "time"

// Student identifies who is taking an attempt.
type Student struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// DisplayName falls back to "Anonymous" when no username is known.
func (s Student) DisplayName() string {
	if s.Username == "" {
		return "Anonymous"
	}
	return s.Username
}

// QuizRef selects the quiz an attempt is for: a concrete quiz id or a random demo quiz of a category.
type QuizRef struct {
	ID       string
	Demo     bool
	Category string
}

// CertificatePolicy controls whether a passing attempt earns a certificate.
type CertificatePolicy struct {
	Enabled      bool    `json:"enabled"`
	PassingScore float64 `json:"passingScore"`
}

// Question is a single choice question; CorrectAnswer holds the option value, not its index.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuestionView is what a student sees before grading.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View strips the answer and explanation.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Text: q.Text, Options: append([]string(nil), q.Options...)}
}

// Quiz is the read-only snapshot a session works on.
type Quiz struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Categories      []string           `json:"categories,omitempty"`
	Questions       []Question         `json:"questions"`
	DurationSeconds int                `json:"durationSeconds"`
	Certificate     *CertificatePolicy `json:"certificate,omitempty"`
	IsDemo          bool               `json:"isDemo"`
}

// AttemptDraft is the locally cached progress of a non-demo attempt.
type AttemptDraft struct {
	QuizID               string            `json:"quizId"`
	Answers              map[string]string `json:"answers"`
	TimeRemainingSeconds int               `json:"timeRemainingSeconds"`
}

// ScoredAnswer is the graded outcome of one question.
type ScoredAnswer struct {
	QuestionID    string   `json:"questionId"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	ChosenAnswer  *string  `json:"chosenAnswer,omitempty"` // nil when unanswered
	IsCorrect     bool     `json:"isCorrect"`
}

// AttemptResult is the final, immutable output of a session.
type AttemptResult struct {
	Score            int            `json:"score"`
	Total            int            `json:"total"`
	TimeTakenSeconds int            `json:"timeTakenSeconds"`
	ScoredAnswers    []ScoredAnswer `json:"scoredAnswers"`
}

// Submission is what gets persisted for a completed non-demo attempt.
type Submission struct {
	QuizID           string            `json:"quizId"`
	Student          Student           `json:"student"`
	Answers          map[string]string `json:"answers"`
	Score            int               `json:"score"`
	Total            int               `json:"total"`
	TimeTakenSeconds int               `json:"timeTaken"`
	QuestionOrder    []string          `json:"questionOrder"`
	ScoredAnswers    []ScoredAnswer    `json:"scoredAnswers,omitempty"`
}

// StoredResult is the record returned by a result store.
type StoredResult struct {
	ID               string         `json:"id"`
	QuizID           string         `json:"quizId"`
	StudentName      string         `json:"studentName"`
	Score            int            `json:"score"`
	Total            int            `json:"total"`
	TimeTakenSeconds int            `json:"timeTaken"`
	QuestionOrder    []string       `json:"questionOrder,omitempty"`
	Answers          []ScoredAnswer `json:"answers,omitempty"`
	AttemptedAt      time.Time      `json:"attemptedAt"`
}
