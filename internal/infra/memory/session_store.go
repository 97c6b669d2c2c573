package memory

import (
	"sync"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	session *app.Session
	stage   domain.Stage
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entry),
	}
}

func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = &entry{session: session, stage: session.Stage()}
}

func (s *SessionStore) Get(participantID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[participantID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (s *SessionStore) Touch(participantID string, stage domain.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[participantID]; ok {
		e.stage = stage
	}
}

func (s *SessionStore) Delete(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, participantID)
}

// StageCounts reports how many live sessions sit in each stage.
func (s *SessionStore) StageCounts() map[domain.Stage]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.Stage]int)
	for _, e := range s.sessions {
		counts[e.stage]++
	}
	return counts
}
