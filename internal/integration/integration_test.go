package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap/zaptest"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
	"study-session-service/internal/infra/fallback"
	"study-session-service/internal/infra/postgres"
	pgmigrations "study-session-service/internal/infra/postgres/migrations"
	infraredis "study-session-service/internal/infra/redis"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

// stepScheduler runs live tasks only when Fire is called.
type stepScheduler struct {
	mu    sync.Mutex
	tasks map[int]func()
	next  int
}

func (s *stepScheduler) Every(_ time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks == nil {
		s.tasks = make(map[int]func())
	}
	id := s.next
	s.next++
	s.tasks[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	}
}

func (s *stepScheduler) Fire() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.tasks))
	for _, fn := range s.tasks {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func TestStudyFlowArchivesEveryStage(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	sink := postgres.NewEventSink(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	log := zaptest.NewLogger(t)
	store := infraredis.NewSessionStore(redisClient, 5*time.Minute, log)
	reporter := app.NewReporter(sink, fallback.NewFileWriter(t.TempDir()), log)
	sched := &stepScheduler{}
	service := app.NewStudyService(store, reporter, app.StudyConfig{
		ProblemCount:       4,
		TaskSeconds:        60,
		BreakAfter:         2,
		BreakSeconds:       1,
		DistractionSeconds: 1,
	}, log, app.WithRandom(constSource(0.2)), app.WithScheduler(sched))

	session := service.Begin(ctx)
	id := session.ID()
	problems := session.Dump().Problems

	mustStage := func(snap app.Snapshot, err error, want domain.Stage) {
		t.Helper()
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if snap.Stage != want {
			t.Fatalf("expected stage %s, got %s", want, snap.Stage)
		}
	}

	_, _ = service.SetDemographics(ctx, id, domain.Demographics{
		AgeRange: "25-34", Gender: "female", Education: "master", MathComfort: "high", PriorTimedTasks: "some",
	})
	snap, err := service.StartTask(ctx, id)
	mustStage(snap, err, domain.StageTask)

	for i := 0; i < 2; i++ {
		_, _ = service.SubmitAnswer(ctx, id, strconv.Itoa(problems[i].Correct))
	}
	sched.Fire()
	if snap, _ = service.ResumeFromBreak(ctx, id); snap.OnBreak {
		t.Fatalf("expected break to be over")
	}
	_, _ = service.SubmitAnswer(ctx, id, strconv.Itoa(problems[2].Correct))
	_, _ = service.SubmitAnswer(ctx, id, "nope")

	snap, err = service.ShowFeedback(ctx, id)
	mustStage(snap, err, domain.StageFeedback)
	snap, err = service.StartDistraction(ctx, id)
	mustStage(snap, err, domain.StageDistraction)
	sched.Fire()
	snap, err = service.FinishDistraction(ctx, id)
	mustStage(snap, err, domain.StageMotivation)
	_, _ = service.SetMotivation(ctx, id, domain.Motivation{Return: 6, Effort: 5, Interest: 4, Confidence: 7})
	snap, err = service.Finish(ctx, id)
	mustStage(snap, err, domain.StageComplete)
	service.Wait()

	if stage, err := redisClient.HGet(ctx, "study:session:"+id, "stage").Result(); err != nil || stage != "complete" {
		t.Fatalf("expected redis marker complete, got %q (%v)", stage, err)
	}

	events, err := sink.Events(ctx, id)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	wantStages := []domain.StageTag{
		domain.TagPhase1Complete, domain.TagPhase2Complete, domain.TagFeedbackShown,
		domain.TagPhase3Complete, domain.TagPhase4Complete,
	}
	if len(events) != len(wantStages) {
		t.Fatalf("expected %d events, got %d", len(wantStages), len(events))
	}
	for i, ev := range events {
		if ev.Stage != wantStages[i] {
			t.Fatalf("event %d: expected %s, got %s", i, wantStages[i], ev.Stage)
		}
	}
	phase2 := events[1]
	if phase2.Phase2.Total != 4 || phase2.Phase2.Correct != 3 || phase2.Phase2.Accuracy != 75 || len(phase2.RawAnswers) != 4 {
		t.Fatalf("unexpected phase2 report %+v", phase2.Phase2)
	}
	if events[2].MusicAssigned != domain.MusicClassical || events[1].FeedbackAssigned != domain.FeedbackPositive95 {
		t.Fatalf("unexpected conditions feedback=%q music=%q", events[1].FeedbackAssigned, events[2].MusicAssigned)
	}
	if avg := events[4].MotivationAvg; avg == nil || *avg != 5.5 {
		t.Fatalf("expected motivation average 5.5, got %v", avg)
	}
	if !service.RemoteOnline() {
		t.Fatalf("expected remote online after acknowledged reports")
	}

	if err := sink.Send(ctx, events[0]); !errors.Is(err, domain.ErrNotAcknowledged) {
		t.Fatalf("expected duplicate to be unacknowledged, got %v", err)
	}

	service.Leave(ctx, id)
	if n, _ := redisClient.Exists(ctx, "study:session:"+id).Result(); n != 0 {
		t.Fatalf("expected redis marker removed on leave")
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "study", "POSTGRES_PASSWORD": "studypass", "POSTGRES_DB": "studydb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://study:studypass@%s:%s/studydb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
