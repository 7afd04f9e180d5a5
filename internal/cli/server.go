package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"medha-quiz/internal/app"
	"medha-quiz/internal/certificate"
	"medha-quiz/internal/config"
	"medha-quiz/internal/domain"
	"medha-quiz/internal/infra/backend"
	"medha-quiz/internal/infra/memory"
	pgstore "medha-quiz/internal/infra/postgres"
	redisstore "medha-quiz/internal/infra/redis"
	"medha-quiz/internal/infra/sqlite"
	"medha-quiz/internal/logging"
	"medha-quiz/internal/metrics"
	transport "medha-quiz/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.NewLogger("medha-quiz", cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := resolvePort(portFlag, cfg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var client *backend.Client
	if cfg.Backend.BaseURL != "" {
		client = backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, config.TTLDuration(cfg.Backend.Timeout, 10*time.Second), nil)
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	switch {
	case client != nil:
		loader = client
	case pool != nil:
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var catalog app.QuizCatalog
	if redisClient != nil {
		catalog = redisstore.NewQuizCatalog(redisClient, loader, quizTTL)
	} else {
		catalog = memory.NewQuizCatalog(loader, quizTTL)
	}

	var results app.ResultStore = memory.NewResultStore()
	switch {
	case client != nil:
		results = client
	case pool != nil:
		results = pgstore.NewResultStore(pool)
	}

	drafts, closeDrafts, err := openDrafts(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeDrafts()

	retention := config.TTLDuration(cfg.Session.Retention, 30*time.Minute)
	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, retention)
	} else {
		sessions = memory.NewSessionStore(retention)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewMetrics(reg)

	renderer := certificate.NewPDFRenderer("")

	tick := config.TTLDuration(cfg.Session.TickInterval, time.Second)
	service := app.NewAttemptService(sessions, catalog, results,
		app.WithDraftBackend(drafts),
		app.WithRenderer(renderer),
		app.WithServiceLogger(log),
		app.WithSessionOptions(
			app.WithTickSource(app.NewIntervalTicker(tick)),
			app.WithRecorder(recorder),
			app.WithLogger(log),
		),
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if sw, ok := sessions.(sweeper); ok {
		go sw.Run(sweepCtx, config.TTLDuration(cfg.Session.SweepInterval, time.Minute))
	}

	handler := transport.NewRouter(transport.RouterConfig{
		Service:        service,
		Log:            log,
		Gatherer:       reg,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz attempt service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sweeper drops expired attempts in the background.
type sweeper interface {
	Run(ctx context.Context, interval time.Duration)
}

// resolvePort picks the --port flag (or PORT), then server.port, then 8080.
func resolvePort(portFlag string, cfg config.Config) string {
	if portFlag != "" {
		return portFlag
	}
	if cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	return "8080"
}

func openDrafts(ctx context.Context, cfg config.Config, redisClient *redis.Client) (app.DraftBackend, func(), error) {
	ttl := config.TTLDuration(cfg.Drafts.TTL, 24*time.Hour)
	switch cfg.Drafts.Backend {
	case "redis":
		return redisstore.NewDraftStore(redisClient, ttl), func() {}, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewDraftStore(db), closeDB(db), nil
	default:
		return memory.NewDraftStore(), func() {}, nil
	}
}

func closeDB(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("closing draft database")
		}
	}
}

// sampleQuizzes is served when neither the backend nor postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:              "quiz-1",
			Title:           "Arithmetic warm-up",
			Categories:      []string{"math"},
			DurationSeconds: 120,
			Certificate:     &domain.CertificatePolicy{Enabled: true, PassingScore: 2},
			Questions: []domain.Question{
				{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
				{ID: "q2", Text: "What is 3 x 3?", Options: []string{"6", "9", "12"}, CorrectAnswer: "9"},
				{ID: "q3", Text: "What is 10 - 7?", Options: []string{"3", "4", "7"}, CorrectAnswer: "3"},
			},
		},
		"demo-science": {
			ID:              "demo-science",
			Title:           "Science demo",
			Categories:      []string{"science"},
			DurationSeconds: 60,
			IsDemo:          true,
			Questions: []domain.Question{
				{ID: "q1", Text: "Which planet is known as the red planet?", Options: []string{"Venus", "Mars", "Jupiter"}, CorrectAnswer: "Mars", Explanation: "Iron oxide gives Mars its colour."},
				{ID: "q2", Text: "What gas do plants absorb?", Options: []string{"Oxygen", "Carbon dioxide", "Helium"}, CorrectAnswer: "Carbon dioxide"},
			},
		},
	}
}
