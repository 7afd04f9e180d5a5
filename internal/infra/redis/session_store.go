package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"medha-quiz/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own a live timer, so the session objects stay in a local map.
//   - Redis holds a liveness key per attempt. Running attempts refresh it on every touch and
//     never expire; once an attempt settles the key lives for the rest of the retention, and
//     when it is gone the local session is disposed and forgotten.
//   - Sweep (or Run) drops expired attempts nobody looks up again.
type SessionStore struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	sessions map[string]*trackedSession
}

type trackedSession struct {
	session *app.QuizSession
	marked  time.Time // settle time the liveness key TTL was last derived from
}

func NewSessionStore(client *redis.Client, retention time.Duration) *SessionStore {
	return &SessionStore{
		client:    client,
		retention: retention,
		clock:     time.Now,
		sessions:  make(map[string]*trackedSession),
	}
}

func (s *SessionStore) Save(attemptID string, session *app.QuizSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &trackedSession{session: session}
	s.sessions[attemptID] = entry
	s.touchLocked(context.Background(), attemptID, entry)
}

func (s *SessionStore) Get(attemptID string) (*app.QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[attemptID]
	if !ok {
		return nil, false
	}
	if !s.touchLocked(context.Background(), attemptID, entry) {
		s.dropLocked(context.Background(), attemptID, entry)
		return nil, false
	}
	return entry.session, true
}

func (s *SessionStore) Delete(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[attemptID]; ok {
		s.dropLocked(context.Background(), attemptID, entry)
		return
	}
	_ = s.client.Del(context.Background(), s.key(attemptID)).Err()
}

// Sweep refreshes running attempts, drops expired ones and reports how many went.
func (s *SessionStore) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if !s.touchLocked(ctx, id, entry) {
			s.dropLocked(ctx, id, entry)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Len reports how many sessions are held locally.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// touchLocked keeps the liveness key in step with the session and reports whether the
// attempt is still retained. Redis errors keep the attempt.
func (s *SessionStore) touchLocked(ctx context.Context, attemptID string, entry *trackedSession) bool {
	state := string(entry.session.State())
	settledAt, settled := entry.session.SettledAt()
	if !settled {
		entry.marked = time.Time{}
		_ = s.client.Set(ctx, s.key(attemptID), state, s.retention).Err()
		return true
	}

	remaining := settledAt.Add(s.retention).Sub(s.clock())
	if s.retention > 0 && remaining <= 0 {
		return false
	}
	if !entry.marked.Equal(settledAt) {
		entry.marked = settledAt
		ttl := remaining
		if s.retention <= 0 {
			ttl = 0
		}
		_ = s.client.Set(ctx, s.key(attemptID), state, ttl).Err()
		return true
	}
	n, err := s.client.Exists(ctx, s.key(attemptID)).Result()
	return err != nil || n > 0
}

func (s *SessionStore) dropLocked(ctx context.Context, attemptID string, entry *trackedSession) {
	entry.session.Dispose()
	delete(s.sessions, attemptID)
	_ = s.client.Del(ctx, s.key(attemptID)).Err()
}

func (s *SessionStore) key(attemptID string) string {
	return "quiz:attempt:" + attemptID
}
