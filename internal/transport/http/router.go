package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"medha-quiz/internal/app"
	"medha-quiz/internal/certificate"
	"medha-quiz/internal/domain"
)

// RouterConfig collects what the HTTP surface needs.
type RouterConfig struct {
	Service        *app.AttemptService
	Log            *logrus.Entry
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// NewRouter mounts health, metrics, the attempt websocket and the attempt result endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// websocket upgrades need the raw connection, so they stay outside the logged group
	ws := NewWSHandler(cfg.Service, log, cfg.AllowedOrigins)
	r.Get("/ws", ws.ServeWS)

	h := &attemptHandler{service: cfg.Service}
	r.Group(func(r chi.Router) {
		r.Use(requestLogger(log))
		r.Get("/attempts/{attemptID}", h.snapshot)
		r.Get("/attempts/{attemptID}/result", h.result)
		r.Get("/attempts/{attemptID}/certificate", h.certificate)
	})
	return r
}

type attemptHandler struct {
	service *app.AttemptService
}

type attemptResultResponse struct {
	AttemptID string               `json:"attemptId"`
	QuizID    string               `json:"quizId"`
	Result    domain.AttemptResult `json:"result"`
	Eligible  bool                 `json:"eligible"`
	Persisted bool                 `json:"persisted"`
	Stored    *domain.StoredResult `json:"stored,omitempty"`
}

func (h *attemptHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (h *attemptHandler) result(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	session, err := h.service.Session(attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.service.Result(attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := attemptResultResponse{
		AttemptID: attemptID,
		QuizID:    session.Quiz().ID,
		Result:    result,
		Eligible:  session.CertificateEligible(),
	}
	if stored, ok := session.StoredResult(); ok {
		resp.Persisted = true
		resp.Stored = &stored
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *attemptHandler) certificate(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := session.Certificate(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}
	filename := certificate.Filename(session.Quiz().Title, session.Student().DisplayName())
	w.Header().Set("Content-Type", certificate.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotActive):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotEligible):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSessionDisposed):
		status = http.StatusGone
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
		})
	}
}
