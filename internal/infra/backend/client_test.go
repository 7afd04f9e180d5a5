package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medha-quiz/internal/domain"
	"medha-quiz/internal/infra/memory"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestFetchByIDNormalizesQuiz(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/quizzes/abc123" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("authorization = %q", got)
		}
		w.Write([]byte(`{"quiz":{
			"_id":"abc123","title":"Planets","duration":90,"category":"Science",
			"certificateEnabled":true,"certificatePassingScore":2,
			"questions":[
				{"_id":"q1","question":"Which planet is red?","options":["Venus","Mars"],"answer":"Mars"},
				{"id":"q2","text":"Largest planet?","options":["Jupiter","Earth"],"correctAnswer":"Jupiter","explanation":"It is a gas giant."}
			]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", 0, server.Client())
	quiz, err := client.FetchByID(context.Background(), " abc123 ")
	if err != nil {
		t.Fatalf("FetchByID failed: %v", err)
	}
	if quiz.ID != "abc123" || quiz.Title != "Planets" || quiz.DurationSeconds != 90 {
		t.Fatalf("unexpected quiz header: %+v", quiz)
	}
	if len(quiz.Categories) != 1 || quiz.Categories[0] != "Science" {
		t.Fatalf("categories = %v", quiz.Categories)
	}
	if quiz.Certificate == nil || !quiz.Certificate.Enabled || quiz.Certificate.PassingScore != 2 {
		t.Fatalf("certificate = %+v", quiz.Certificate)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	if q := quiz.Questions[0]; q.ID != "q1" || q.Text != "Which planet is red?" || q.CorrectAnswer != "Mars" {
		t.Fatalf("question 1 = %+v", q)
	}
	if q := quiz.Questions[1]; q.ID != "q2" || q.Text != "Largest planet?" || q.CorrectAnswer != "Jupiter" || q.Explanation == "" {
		t.Fatalf("question 2 = %+v", q)
	}
}

func TestFetchQuizIDFallbacks(t *testing.T) {
	cases := []struct{ body, want string }{
		{`{"quiz":{"id":"id-1","questions":[]}}`, "id-1"},
		{`{"quiz":{"quizId":"qid-1","questions":[]}}`, "qid-1"},
		{`{"quiz":{"quiz":{"_id":"nested-1"},"questions":[]}}`, "nested-1"},
		{`{"quiz":{"_id":42,"questions":[]}}`, "42"},
	}
	for _, tc := range cases {
		body, want := tc.body, tc.want
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(body))
		}))
		client := NewClient(server.URL, "", 0, server.Client())
		quiz, err := client.FetchByID(context.Background(), "x")
		server.Close()
		if err != nil {
			t.Fatalf("FetchByID(%s) failed: %v", body, err)
		}
		if quiz.ID != want {
			t.Fatalf("id from %s = %q, want %q", body, quiz.ID, want)
		}
	}
}

func TestFetchDemoUsesCategoryPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quizzes/demo/science" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"quiz":{"_id":"d1","certificate":{"enabled":false},"questions":[{"_id":"q1","question":"?","options":["a"],"answer":"a"}]}}`))
	}))
	defer server.Close()

	quiz, err := NewClient(server.URL, "", 0, server.Client()).FetchDemo(context.Background(), "Science")
	if err != nil {
		t.Fatalf("FetchDemo failed: %v", err)
	}
	if !quiz.IsDemo || quiz.ID != "d1" {
		t.Fatalf("unexpected demo quiz %+v", quiz)
	}
	if quiz.Certificate == nil || quiz.Certificate.Enabled {
		t.Fatalf("expected nested certificate policy, got %+v", quiz.Certificate)
	}
}

func TestFetchMapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Quiz not found"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", 0, server.Client()).FetchByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestTransportErrorIsNotNotFound(t *testing.T) {
	client := NewClient("http://example.test", "", 0, &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial error")
		}),
	})

	_, err := client.FetchByID(context.Background(), "quiz-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("transport failure must not look like a missing quiz: %v", err)
	}
}

func TestSubmitResultSendsPayloadAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/results" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req resultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.QuizID != "quiz-1" || req.StudentName != "Anonymous" || req.Score != 1 || req.Total != 2 || req.TimeTaken != 12 {
			t.Fatalf("unexpected payload %+v", req)
		}
		if req.Answers["q1"] != "4" || len(req.QuestionOrder) != 2 {
			t.Fatalf("unexpected answers/order %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":{"_id":"r1","quizId":{"_id":"quiz-1"},"studentName":"Anonymous","score":1,"totalQuestions":2,"timeTaken":12,"date":"2024-05-01T10:00:00.000Z"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, nil)
	chosen := "4"
	stored, err := client.SubmitResult(context.Background(), domain.Submission{
		QuizID:           "quiz-1",
		Answers:          map[string]string{"q1": "4"},
		Score:            1,
		Total:            2,
		TimeTakenSeconds: 12,
		QuestionOrder:    []string{"q2", "q1"},
		ScoredAnswers:    []domain.ScoredAnswer{{QuestionID: "q1", ChosenAnswer: &chosen, IsCorrect: true}},
	})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}
	if stored.ID != "r1" || stored.QuizID != "quiz-1" || stored.Total != 2 {
		t.Fatalf("unexpected stored result %+v", stored)
	}
	if stored.AttemptedAt.IsZero() {
		t.Fatalf("expected attempted time from date")
	}
	if len(stored.QuestionOrder) != 2 || stored.QuestionOrder[0] != "q2" {
		t.Fatalf("expected question order from submission, got %v", stored.QuestionOrder)
	}
	if len(stored.Answers) != 1 {
		t.Fatalf("expected scored answers carried over")
	}
}

func TestSubmitResultAcceptsBareObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":"r2","quizId":"quiz-1","score":2,"total":2,"attemptedAt":"2024-05-01T10:00:00Z"}`))
	}))
	defer server.Close()

	stored, err := NewClient(server.URL, "", 0, server.Client()).SubmitResult(context.Background(), domain.Submission{QuizID: "quiz-1", Score: 2, Total: 2})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}
	if stored.ID != "r2" || stored.Score != 2 || stored.AttemptedAt.IsZero() {
		t.Fatalf("unexpected stored result %+v", stored)
	}
}

func TestSubmitResultReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"db down"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", 0, server.Client()).SubmitResult(context.Background(), domain.Submission{QuizID: "quiz-1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "db down" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestHasAttemptedMatchesStringAndPopulatedIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/results/student/alice" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"quizId":"quiz-1"},{"quizId":{"_id":"quiz-2","title":"Other"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0, server.Client())
	for quizID, want := range map[string]bool{"quiz-1": true, "quiz-2": true, "quiz-3": false} {
		got, err := client.HasAttempted(context.Background(), quizID, "alice")
		if err != nil {
			t.Fatalf("HasAttempted(%s) failed: %v", quizID, err)
		}
		if got != want {
			t.Fatalf("HasAttempted(%s) = %v, want %v", quizID, got, want)
		}
	}
}

func TestClientBacksCachingCatalog(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"quiz":{"_id":"quiz-1","questions":[{"_id":"q1","question":"?","options":["a"],"answer":"a"}]}}`))
	}))
	defer server.Close()

	catalog := memory.NewQuizCatalog(NewClient(server.URL, "", 0, server.Client()), time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := catalog.FetchByID(context.Background(), "quiz-1"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one backend call, got %d", calls)
	}
}
