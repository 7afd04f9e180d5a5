package memory

import (
	"context"
	"sync"
	"time"

	"medha-quiz/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Retention counts from the moment an attempt settled (graded, failed or released); running
// attempts never expire. Expired sessions are disposed on access or by Sweep.
type SessionStore struct {
	retention time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	sessions map[string]*app.QuizSession
}

// NewSessionStore keeps settled sessions for retention; zero keeps them until deleted.
func NewSessionStore(retention time.Duration) *SessionStore {
	return newSessionStoreWithClock(retention, time.Now)
}

func newSessionStoreWithClock(retention time.Duration, clock func() time.Time) *SessionStore {
	return &SessionStore{
		retention: retention,
		clock:     clock,
		sessions:  make(map[string]*app.QuizSession),
	}
}

func (s *SessionStore) Save(attemptID string, session *app.QuizSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[attemptID] = session
}

func (s *SessionStore) Get(attemptID string) (*app.QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[attemptID]
	if !ok {
		return nil, false
	}
	if s.expired(session, s.clock()) {
		s.dropLocked(attemptID, session)
		return nil, false
	}
	return session, true
}

func (s *SessionStore) Delete(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[attemptID]; ok {
		s.dropLocked(attemptID, session)
	}
}

// Sweep disposes and forgets every session whose retention elapsed and reports how many went.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	removed := 0
	for id, session := range s.sessions {
		if s.expired(session, now) {
			s.dropLocked(id, session)
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
			s.Sweep()
		}
	}
}

// Len reports how many sessions are held.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(session *app.QuizSession, now time.Time) bool {
	if s.retention <= 0 {
		return false
	}
	settledAt, ok := session.SettledAt()
	return ok && !settledAt.Add(s.retention).After(now)
}

func (s *SessionStore) dropLocked(attemptID string, session *app.QuizSession) {
	session.Dispose()
	delete(s.sessions, attemptID)
}
