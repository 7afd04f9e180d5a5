package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"medha-quiz/internal/domain"
)

// flexibleID accepts a string, a number or a populated document carrying _id or id.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
	case '{':
		var doc struct {
			MongoID flexibleID `json:"_id"`
			ID      flexibleID `json:"id"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		*f = firstID(doc.MongoID, doc.ID)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported id %s", data)
		}
		*f = flexibleID(n.String())
	}
	return nil
}

func firstID(ids ...flexibleID) flexibleID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

type quizEnvelope struct {
	Quiz *wireQuiz `json:"quiz"`
}

type wireQuiz struct {
	MongoID    flexibleID     `json:"_id"`
	ID         flexibleID     `json:"id"`
	QuizID     flexibleID     `json:"quizId"`
	Nested     *wireRef       `json:"quiz"`
	Title      string         `json:"title"`
	Questions  []wireQuestion `json:"questions"`
	Duration   float64        `json:"duration"`
	Categories []string       `json:"categories"`
	Category   string         `json:"category"`
	IsDemo     bool           `json:"isDemo"`

	CertificateEnabled      *bool                     `json:"certificateEnabled"`
	CertificatePassingScore *float64                  `json:"certificatePassingScore"`
	Certificate             *domain.CertificatePolicy `json:"certificate"`
}

type wireRef struct {
	ID flexibleID `json:"_id"`
}

type wireQuestion struct {
	MongoID       flexibleID `json:"_id"`
	ID            flexibleID `json:"id"`
	Question      string     `json:"question"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	Answer        string     `json:"answer"`
	CorrectAnswer string     `json:"correctAnswer"`
	Explanation   string     `json:"explanation"`
}

func (w wireQuiz) toDomain() domain.Quiz {
	id := firstID(w.MongoID, w.ID, w.QuizID)
	if id == "" && w.Nested != nil {
		id = w.Nested.ID
	}

	quiz := domain.Quiz{
		ID:              string(id),
		Title:           w.Title,
		DurationSeconds: int(w.Duration),
		IsDemo:          w.IsDemo,
		Categories:      w.Categories,
	}
	if len(quiz.Categories) == 0 && strings.TrimSpace(w.Category) != "" {
		quiz.Categories = []string{strings.TrimSpace(w.Category)}
	}

	switch {
	case w.CertificateEnabled != nil || w.CertificatePassingScore != nil:
		policy := &domain.CertificatePolicy{}
		if w.CertificateEnabled != nil {
			policy.Enabled = *w.CertificateEnabled
		}
		if w.CertificatePassingScore != nil {
			policy.PassingScore = *w.CertificatePassingScore
		}
		quiz.Certificate = policy
	case w.Certificate != nil:
		policy := *w.Certificate
		quiz.Certificate = &policy
	}

	quiz.Questions = make([]domain.Question, 0, len(w.Questions))
	for i, q := range w.Questions {
		qid := string(firstID(q.MongoID, q.ID))
		if qid == "" {
			qid = "q" + strconv.Itoa(i+1)
		}
		text := q.Question
		if text == "" {
			text = q.Text
		}
		answer := q.Answer
		if answer == "" {
			answer = q.CorrectAnswer
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            qid,
			Text:          text,
			Options:       q.Options,
			CorrectAnswer: answer,
			Explanation:   q.Explanation,
		})
	}
	return quiz
}

type resultRequest struct {
	QuizID        string            `json:"quizId"`
	StudentName   string            `json:"studentName"`
	Answers       map[string]string `json:"answers"`
	Score         int               `json:"score"`
	Total         int               `json:"total"`
	TimeTaken     int               `json:"timeTaken"`
	QuestionOrder []string          `json:"questionOrder"`
}

type wireResult struct {
	MongoID        flexibleID `json:"_id"`
	ID             flexibleID `json:"id"`
	QuizID         flexibleID `json:"quizId"`
	StudentName    string     `json:"studentName"`
	Score          int        `json:"score"`
	Total          int        `json:"total"`
	TotalQuestions int        `json:"totalQuestions"`
	TimeTaken      int        `json:"timeTaken"`
	QuestionOrder  []string   `json:"questionOrder"`
	Date           *time.Time `json:"date"`
	AttemptedAt    *time.Time `json:"attemptedAt"`
}

func (w wireResult) toDomain() domain.StoredResult {
	total := w.Total
	if total == 0 {
		total = w.TotalQuestions
	}
	r := domain.StoredResult{
		ID:               string(firstID(w.MongoID, w.ID)),
		QuizID:           string(w.QuizID),
		StudentName:      w.StudentName,
		Score:            w.Score,
		Total:            total,
		TimeTakenSeconds: w.TimeTaken,
		QuestionOrder:    w.QuestionOrder,
	}
	switch {
	case w.AttemptedAt != nil:
		r.AttemptedAt = *w.AttemptedAt
	case w.Date != nil:
		r.AttemptedAt = *w.Date
	}
	return r
}

type resultsEnvelope struct {
	Results []wireResult `json:"results"`
}

// decodeSubmitted accepts {result: {...}} or the bare result object.
func decodeSubmitted(raw json.RawMessage) (domain.StoredResult, error) {
	var wrapped struct {
		Result *wireResult `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return domain.StoredResult{}, fmt.Errorf("decode result: %w", err)
	}
	if wrapped.Result != nil {
		return wrapped.Result.toDomain(), nil
	}
	var bare wireResult
	if err := json.Unmarshal(raw, &bare); err != nil {
		return domain.StoredResult{}, fmt.Errorf("decode result: %w", err)
	}
	return bare.toDomain(), nil
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
