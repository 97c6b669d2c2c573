package app_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
	"study-session-service/internal/infra/memory"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []domain.Report
	err     error
}

func (s *recordingSink) Send(_ context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) tags() []domain.StageTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]domain.StageTag, 0, len(s.reports))
	for _, r := range s.reports {
		tags = append(tags, r.Stage)
	}
	return tags
}

type nopFallback struct{}

func (nopFallback) Write(_ context.Context, r domain.Report) (string, error) {
	return domain.FallbackFilename(r.ParticipantID, r.Stage), nil
}

func newTestService(t *testing.T, sink app.Sink) (*app.StudyService, *app.ManualScheduler) {
	t.Helper()
	sched := app.NewManualScheduler()
	clock := app.NewFakeClock()
	log := zaptest.NewLogger(t)
	reporter := app.NewReporter(sink, nopFallback{}, log)
	service := app.NewStudyService(memory.NewSessionStore(), reporter, app.DefaultStudyConfig(), log,
		app.WithRandom(app.FixedSource(0.8)),
		app.WithScheduler(sched),
		app.WithClock(clock.Now),
		app.WithIDGenerator(func() string { return "participant-1" }),
	)
	return service, sched
}

func demo() domain.Demographics {
	return domain.Demographics{AgeRange: "18-24", Gender: "male", Education: "master", MathComfort: "high", PriorTimedTasks: "none"}
}

func TestFullSessionReportsEveryStage(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	service, sched := newTestService(t, sink)

	session := service.Begin(ctx)
	id := session.ID()
	defer service.Leave(ctx, id)

	if _, err := service.SetDemographics(ctx, id, demo()); err != nil {
		t.Fatalf("set demographics: %v", err)
	}
	if snap, _ := service.StartTask(ctx, id); snap.Stage != domain.StageTask {
		t.Fatalf("expected task stage, got %s", snap.Stage)
	}
	service.Wait()

	dump := session.Dump()
	for i := 0; i < 3; i++ {
		if _, err := service.SubmitAnswer(ctx, id, strconv.Itoa(dump.Problems[i].Correct)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	sched.Tick(180)
	if _, err := service.ShowFeedback(ctx, id); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	service.Wait()
	if _, err := service.StartDistraction(ctx, id); err != nil {
		t.Fatalf("distraction: %v", err)
	}
	service.Wait()
	sched.Tick(60)
	if _, err := service.FinishDistraction(ctx, id); err != nil {
		t.Fatalf("finish distraction: %v", err)
	}
	service.Wait()
	if _, err := service.SetMotivation(ctx, id, domain.Motivation{Return: 5, Effort: 6, Interest: 3, Confidence: 7}); err != nil {
		t.Fatalf("motivation: %v", err)
	}
	snap, err := service.Finish(ctx, id)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	service.Wait()

	if snap.Stage != domain.StageComplete {
		t.Fatalf("expected complete, got %s", snap.Stage)
	}
	want := []domain.StageTag{
		domain.TagPhase1Complete,
		domain.TagPhase2Complete,
		domain.TagFeedbackShown,
		domain.TagPhase3Complete,
		domain.TagPhase4Complete,
	}
	got := sink.tags()
	if len(got) != len(want) {
		t.Fatalf("expected %d reports, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("report %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	phase2 := sink.reports[1]
	if phase2.Phase2.Total != 3 || phase2.Phase2.Correct != 3 || len(phase2.RawAnswers) != 3 || len(phase2.Problems) != 30 {
		t.Fatalf("unexpected phase2 report %+v", phase2.Phase2)
	}
	if phase2.FeedbackAssigned != domain.FeedbackNegative60 {
		t.Fatalf("expected Negative60, got %q", phase2.FeedbackAssigned)
	}
	final := sink.reports[4]
	if final.MusicAssigned != domain.MusicMetal || final.MotivationAvg == nil || *final.MotivationAvg != 5.25 {
		t.Fatalf("unexpected final report music=%q avg=%v", final.MusicAssigned, final.MotivationAvg)
	}

	// guards keep every event to a single report
	_, _ = service.Finish(ctx, id)
	_, _ = service.StartTask(ctx, id)
	service.Wait()
	if n := len(sink.tags()); n != 5 {
		t.Fatalf("expected no duplicate reports, got %d", n)
	}
}

func TestFailedReportPushesFallbackNotice(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, &recordingSink{err: domain.ErrNotAcknowledged})

	session := service.Begin(ctx)
	defer service.Leave(ctx, session.ID())
	if !service.RemoteOnline() {
		t.Fatalf("expected online before first failure")
	}
	if _, err := service.Export(ctx, session.ID()); !errors.Is(err, domain.ErrExportUnavailable) {
		t.Fatalf("expected export unavailable while online, got %v", err)
	}

	_, _ = service.SetDemographics(ctx, session.ID(), demo())
	_, _ = service.StartTask(ctx, session.ID())
	service.Wait()

	notice := <-session.Fallbacks()
	if notice.Filename != "participant_participant-1_phase1_complete.json" || notice.Report.Stage != domain.TagPhase1Complete {
		t.Fatalf("unexpected notice %+v", notice)
	}
	if service.RemoteOnline() {
		t.Fatalf("expected offline after failure")
	}
	dump, err := service.Export(ctx, session.ID())
	if err != nil || dump.ParticipantID != "participant-1" || len(dump.Problems) != 30 {
		t.Fatalf("expected export after failure, got %+v err=%v", dump, err)
	}
}

func TestUnknownSession(t *testing.T) {
	service, _ := newTestService(t, nil)
	if _, err := service.StartTask(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if _, _, err := service.Subscribe(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestLeaveStopsTimersAndDropsSession(t *testing.T) {
	ctx := context.Background()
	service, sched := newTestService(t, nil)

	session := service.Begin(ctx)
	_, _ = service.SetDemographics(ctx, session.ID(), demo())
	_, _ = service.StartTask(ctx, session.ID())
	service.Wait()
	if sched.Live() != 1 {
		t.Fatalf("expected task timer running")
	}

	service.Leave(ctx, session.ID())
	if sched.Live() != 0 {
		t.Fatalf("expected timers cancelled on leave")
	}
	if _, err := service.Session(session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session dropped, got %v", err)
	}
}
