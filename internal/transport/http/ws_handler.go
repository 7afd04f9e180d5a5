package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"medha-quiz/internal/app"
	"medha-quiz/internal/domain"
)

type WSHandler struct {
	service  *app.AttemptService
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

// NewWSHandler builds the attempt websocket endpoint. An empty allowedOrigins accepts any origin.
func NewWSHandler(service *app.AttemptService, log *logrus.Entry, allowedOrigins []string) *WSHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

type startedPayload struct {
	AttemptID     string                `json:"attemptId"`
	QuizID        string                `json:"quizId"`
	Title         string                `json:"title"`
	Demo          bool                  `json:"demo"`
	Questions     []domain.QuestionView `json:"questions"`
	TimeRemaining int                   `json:"timeRemaining"`
}

type resultPayload struct {
	Result    domain.AttemptResult `json:"result"`
	Eligible  bool                 `json:"eligible"`
	Persisted bool                 `json:"persisted"`
	Error     string               `json:"error,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz attempt per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ref := domain.QuizRef{ID: strings.TrimSpace(query.Get("quizId"))}
	if category := strings.TrimSpace(query.Get("demo")); category != "" {
		ref = domain.QuizRef{Demo: true, Category: category}
	}
	if ref.ID == "" && !ref.Demo {
		http.Error(w, "missing quizId or demo", http.StatusBadRequest)
		return
	}
	student := domain.Student{Username: strings.TrimSpace(query.Get("student"))}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	attemptID, session, err := h.service.Begin(r.Context(), ref, student)
	if session == nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
		return
	}
	defer h.service.Release(attemptID)
	log := h.log.WithField("attempt_id", attemptID)

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}()

	quiz := session.Quiz()
	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		AttemptID:     attemptID,
		QuizID:        quiz.ID,
		Title:         quiz.Title,
		Demo:          quiz.IsDemo,
		Questions:     session.Questions(),
		TimeRemaining: session.Snapshot().TimeRemainingSeconds,
	}}

	go func() {
		defer close(updatesDone)
		lastOutcome := ""
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				msgs := []outboundMessage[any]{{Type: "state", Payload: snap}}
				if outcome := outcomeKey(snap); outcome != "" && outcome != lastOutcome {
					lastOutcome = outcome
					msgs = append(msgs, outboundMessage[any]{Type: "result", Payload: buildResult(session, snap)})
				}
				for _, msg := range msgs {
					select {
					case send <- msg:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if err := h.service.Answer(r.Context(), attemptID, payload.QuestionID, payload.Option); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}}
			}
		case "submit":
			// the outcome arrives through the state subscription
			if _, err := h.service.Submit(r.Context(), attemptID); err != nil {
				log.WithError(err).Warn("submit failed")
			}
		case "retry":
			if _, err := h.service.Retry(r.Context(), attemptID); err != nil {
				if errors.Is(err, domain.ErrNothingToRetry) {
					send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}}
					continue
				}
				log.WithError(err).Warn("retry failed")
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// outcomeKey identifies a graded snapshot so each distinct outcome is reported once.
func outcomeKey(snap app.Snapshot) string {
	if snap.Result == nil || !snap.State.Terminal() {
		return ""
	}
	return string(snap.State) + "|" + snap.Error
}

func buildResult(session *app.QuizSession, snap app.Snapshot) resultPayload {
	_, persisted := session.StoredResult()
	return resultPayload{
		Result:    *snap.Result,
		Eligible:  session.CertificateEligible(),
		Persisted: persisted,
		Error:     snap.Error,
	}
}

func errorMessage(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz not found"
	case errors.Is(err, domain.ErrQuizEmpty):
		return "this quiz has no questions"
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return "you have already attempted this quiz"
	case errors.Is(err, domain.ErrNetworkFailure):
		return "failed to load quiz"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "failed to submit quiz"
	}
	return err.Error()
}
