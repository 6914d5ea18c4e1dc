package main

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the view state of one visitor: the last displayed result and
// how far through the steps they are.
type Session struct {
	ID          string
	Last        *Result
	CurrentStep int
	UpdatedAt   time.Time
}

// Compute runs the pipeline and replaces Last. On empty text the previous
// result is kept and ErrEmptyInput is returned for the caller to show.
func (s *Session) Compute(p *Pipeline, text string) (*Result, error) {
	res, err := p.Run(text)
	if err != nil {
		if errors.Is(err, ErrEmptyInput) {
			return s.Last, err
		}
		return nil, err
	}
	s.Last = res
	s.CurrentStep = len(DefaultSteps())
	s.UpdatedAt = time.Now()
	return res, nil
}

// SessionStore keeps sessions for the HTTP layer. Sessions never leave the
// store by pointer; callers get copies taken under the lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the session for id, creating a fresh one when id is
// empty or unknown. Looking a session up keeps it alive.
func (s *SessionStore) Get(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getLocked(id)
}

// Compute runs a pipeline pass for session id under the store lock and
// returns the session as it stood afterwards.
func (s *SessionStore) Compute(id string, p *Pipeline, text string) (Session, *Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(id)
	res, err := sess.Compute(p, text)
	return *sess, res, err
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) getLocked(id string) *Session {
	now := s.now()
	s.evictLocked(now)
	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.UpdatedAt = now
		return sess
	}
	sess := &Session{ID: uuid.NewString(), UpdatedAt: now}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *SessionStore) evictLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
