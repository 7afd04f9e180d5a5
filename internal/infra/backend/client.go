package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"medha-quiz/internal/domain"
)

// APIError is a non-2xx answer from the quiz backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("backend request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to the quiz platform REST backend. It implements app.QuizCatalog,
// app.ResultStore and app.AttemptHistory.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a backend client. A nil httpClient gets one with the given timeout.
func NewClient(baseURL, token string, timeout time.Duration, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, token: strings.TrimSpace(token), httpClient: httpClient}
}

func (c *Client) FetchByID(ctx context.Context, quizID string) (domain.Quiz, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return c.fetchQuiz(ctx, "/api/quizzes/"+url.PathEscape(quizID))
}

func (c *Client) FetchDemo(ctx context.Context, category string) (domain.Quiz, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz, err := c.fetchQuiz(ctx, "/quizzes/demo/"+url.PathEscape(category))
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.IsDemo = true
	return quiz, nil
}

// LoadQuiz and LoadDemo let the client back a caching catalog.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.FetchByID(ctx, quizID)
}

func (c *Client) LoadDemo(ctx context.Context, category string) (domain.Quiz, error) {
	return c.FetchDemo(ctx, category)
}

func (c *Client) fetchQuiz(ctx context.Context, path string) (domain.Quiz, error) {
	var payload quizEnvelope
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, err
	}
	if payload.Quiz == nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return payload.Quiz.toDomain(), nil
}

func (c *Client) SubmitResult(ctx context.Context, sub domain.Submission) (domain.StoredResult, error) {
	answers := sub.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	req := resultRequest{
		QuizID:        sub.QuizID,
		StudentName:   sub.Student.DisplayName(),
		Answers:       answers,
		Score:         sub.Score,
		Total:         sub.Total,
		TimeTaken:     sub.TimeTakenSeconds,
		QuestionOrder: sub.QuestionOrder,
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/results", req, &raw); err != nil {
		return domain.StoredResult{}, err
	}
	stored, err := decodeSubmitted(raw)
	if err != nil {
		return domain.StoredResult{}, err
	}

	// the backend may echo only part of what was sent
	if stored.QuizID == "" {
		stored.QuizID = sub.QuizID
	}
	if stored.StudentName == "" {
		stored.StudentName = req.StudentName
	}
	if stored.Total == 0 {
		stored.Score, stored.Total, stored.TimeTakenSeconds = sub.Score, sub.Total, sub.TimeTakenSeconds
	}
	if len(stored.QuestionOrder) == 0 {
		stored.QuestionOrder = sub.QuestionOrder
	}
	stored.Answers = sub.ScoredAnswers
	return stored, nil
}

func (c *Client) HasAttempted(ctx context.Context, quizID, student string) (bool, error) {
	var payload resultsEnvelope
	path := "/api/results/student/" + url.PathEscape(student)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	for _, r := range payload.Results {
		if string(r.QuizID) == quizID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		msg := payload.Message
		if msg == "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
