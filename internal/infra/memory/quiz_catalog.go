package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"medha-quiz/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., document DB).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadDemo(ctx context.Context, category string) (domain.Quiz, error)
}

// QuizCatalog caches quizzes by id with TTL to avoid repeated DB hits.
// Demo lookups pick a random quiz every time and are passed straight to the loader.
type QuizCatalog struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCatalog(loader QuizLoader, ttl time.Duration) *QuizCatalog {
	return &QuizCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (c *QuizCatalog) FetchByID(ctx context.Context, quizID string) (domain.Quiz, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return cloneQuiz(entry.quiz), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return cloneQuiz(result.(domain.Quiz)), nil
}

func (c *QuizCatalog) FetchDemo(ctx context.Context, category string) (domain.Quiz, error) {
	quiz, err := c.loader.LoadDemo(ctx, strings.ToLower(strings.TrimSpace(category)))
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.IsDemo = true
	return quiz, nil
}

func (c *QuizCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// cloneQuiz copies the question slice so sessions can reorder it without touching the cache.
func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Questions = append([]domain.Question(nil), q.Questions...)
	return q
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{
		quizzes: quizzes,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// LoadDemo picks a random demo quiz tagged with category.
func (l *StaticQuizLoader) LoadDemo(_ context.Context, category string) (domain.Quiz, error) {
	var matches []domain.Quiz
	for _, quiz := range l.quizzes {
		if quiz.IsDemo && hasCategory(quiz, category) {
			matches = append(matches, quiz)
		}
	}
	if len(matches) == 0 {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	l.mu.Lock()
	pick := matches[l.rnd.Intn(len(matches))]
	l.mu.Unlock()
	return pick, nil
}

func hasCategory(quiz domain.Quiz, category string) bool {
	for _, c := range quiz.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
