package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in process; timers and subscribers cannot be shared.
//   - Redis holds a liveness hash per participant ({stage, updatedAt}) so
//     operators can watch progress across instances.
//   - Nothing is ever restored from Redis; a dropped connection ends the session.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	log      *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *SessionStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log.Named("redis_sessions"),
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	s.mark(session.ID(), session.Stage())
}

func (s *SessionStore) Get(participantID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[participantID]
	return session, ok
}

func (s *SessionStore) Touch(participantID string, stage domain.Stage) {
	s.mu.RLock()
	_, ok := s.sessions[participantID]
	s.mu.RUnlock()
	if ok {
		s.mark(participantID, stage)
	}
}

func (s *SessionStore) Delete(participantID string) {
	s.mu.Lock()
	delete(s.sessions, participantID)
	s.mu.Unlock()
	// best-effort
	if err := s.client.Del(context.Background(), s.key(participantID)).Err(); err != nil {
		s.log.Warn("clear session marker", zap.String("participant_id", participantID), zap.Error(err))
	}
}

// mark is best-effort: a Redis outage never blocks the participant.
func (s *SessionStore) mark(participantID string, stage domain.Stage) {
	ctx := context.Background()
	key := s.key(participantID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "stage", stage.String(), "updatedAt", time.Now().UTC().Format(time.RFC3339))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("mark session", zap.String("participant_id", participantID), zap.Error(err))
	}
}

func (s *SessionStore) key(participantID string) string {
	return "study:session:" + participantID
}
