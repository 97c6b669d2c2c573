package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"study-session-service/internal/domain"
)

// SessionRepository abstracts where live participant sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(participantID string) (*Session, bool)
	// Touch records the session's current stage after a transition.
	Touch(participantID string, stage domain.Stage)
	Delete(participantID string)
}

// StudyService contains the participant-facing use cases.
type StudyService struct {
	sessions  SessionRepository
	reporter  *Reporter
	cfg       StudyConfig
	log       *zap.Logger
	random    RandomSource
	scheduler Scheduler
	now       func() time.Time
	newID     func() string

	inflight sync.WaitGroup
}

// Option customizes a StudyService.
type Option func(*StudyService)

// WithRandom replaces the shared random source.
func WithRandom(src RandomSource) Option {
	return func(s *StudyService) { s.random = src }
}

// WithScheduler replaces the tick scheduler.
func WithScheduler(sched Scheduler) Option {
	return func(s *StudyService) { s.scheduler = sched }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *StudyService) { s.now = now }
}

// WithIDGenerator replaces participant ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *StudyService) { s.newID = gen }
}

func NewStudyService(store SessionRepository, reporter *Reporter, cfg StudyConfig, log *zap.Logger, opts ...Option) *StudyService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &StudyService{
		sessions:  store,
		reporter:  reporter,
		cfg:       cfg.withDefaults(),
		log:       log.Named("study"),
		random:    NewRandomSource(),
		scheduler: NewTickerScheduler(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective study configuration.
func (s *StudyService) Config() StudyConfig {
	return s.cfg
}

// RemoteOnline reports whether stage reports currently reach the remote endpoint.
func (s *StudyService) RemoteOnline() bool {
	return s.reporter.Online()
}

// Begin creates a new participant session.
func (s *StudyService) Begin(_ context.Context) *Session {
	session := NewSession(s.newID(), s.cfg, SessionOptions{
		Random:    s.random,
		Scheduler: s.scheduler,
		Now:       s.now,
	})
	s.sessions.Save(session)
	s.sessions.Touch(session.ID(), session.Stage())
	s.log.Info("session started", zap.String("participant_id", session.ID()))
	return session
}

// Session looks up a live session.
func (s *StudyService) Session(participantID string) (*Session, error) {
	session, ok := s.sessions.Get(participantID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *StudyService) SetDemographics(_ context.Context, participantID string, demo domain.Demographics) (Snapshot, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.SetDemographics(demo), nil
}

func (s *StudyService) StartTask(ctx context.Context, participantID string) (Snapshot, error) {
	return s.transition(ctx, participantID, (*Session).StartTask)
}

func (s *StudyService) SubmitAnswer(_ context.Context, participantID, answer string) (Snapshot, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.SubmitAnswer(answer), nil
}

func (s *StudyService) ResumeFromBreak(_ context.Context, participantID string) (Snapshot, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.ResumeFromBreak(), nil
}

func (s *StudyService) ShowFeedback(ctx context.Context, participantID string) (Snapshot, error) {
	return s.transition(ctx, participantID, (*Session).ShowFeedback)
}

func (s *StudyService) StartDistraction(ctx context.Context, participantID string) (Snapshot, error) {
	return s.transition(ctx, participantID, (*Session).StartDistraction)
}

func (s *StudyService) FinishDistraction(ctx context.Context, participantID string) (Snapshot, error) {
	return s.transition(ctx, participantID, (*Session).FinishDistraction)
}

func (s *StudyService) SetMotivation(_ context.Context, participantID string, m domain.Motivation) (Snapshot, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.SetMotivation(m), nil
}

func (s *StudyService) Finish(ctx context.Context, participantID string) (Snapshot, error) {
	return s.transition(ctx, participantID, (*Session).Finish)
}

// Subscribe returns a channel that receives snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *StudyService) Subscribe(_ context.Context, participantID string) (<-chan Snapshot, func(), error) {
	session, err := s.Session(participantID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Export returns the full-session dump. It is only offered while remote
// reporting is offline.
func (s *StudyService) Export(_ context.Context, participantID string) (domain.SessionDump, error) {
	if s.reporter.Online() {
		return domain.SessionDump{}, domain.ErrExportUnavailable
	}
	session, err := s.Session(participantID)
	if err != nil {
		return domain.SessionDump{}, err
	}
	return session.Dump(), nil
}

// Leave ends a session: timers stop and the state is dropped.
func (s *StudyService) Leave(_ context.Context, participantID string) {
	session, ok := s.sessions.Get(participantID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(participantID)
	s.log.Info("session closed",
		zap.String("participant_id", participantID),
		zap.Stringer("stage", session.Stage()),
	)
}

// Wait blocks until every in-flight report has been delivered or written locally.
func (s *StudyService) Wait() {
	s.inflight.Wait()
}

func (s *StudyService) transition(ctx context.Context, participantID string, step func(*Session) (Snapshot, *domain.Report)) (Snapshot, error) {
	session, err := s.Session(participantID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, report := step(session)
	if report == nil {
		return snap, nil
	}
	s.sessions.Touch(participantID, snap.Stage)
	s.log.Info("stage completed",
		zap.String("participant_id", participantID),
		zap.String("event", string(report.Stage)),
		zap.Stringer("stage", snap.Stage),
	)
	s.dispatch(context.WithoutCancel(ctx), session, *report)
	return snap, nil
}

// dispatch reports in the background so transitions never wait on the network.
func (s *StudyService) dispatch(ctx context.Context, session *Session, report domain.Report) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		outcome := s.reporter.Report(ctx, report)
		if outcome.Delivered {
			return
		}
		session.deliverFallback(FallbackNotice{Filename: outcome.FallbackFile, Report: report})
	}()
}
