package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"study-session-service/internal/app"
	"study-session-service/internal/config"
	"study-session-service/internal/domain"
	"study-session-service/internal/infra/fallback"
	"study-session-service/internal/infra/memory"
	"study-session-service/internal/infra/postgres"
	redissession "study-session-service/internal/infra/redis"
	"study-session-service/internal/infra/remote"
	"study-session-service/internal/logger"
	transport "study-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the study server",
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
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var store app.SessionRepository = memory.NewSessionStore()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		store = redissession.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour), log)
	}

	sink, closeSink, err := buildSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	reporter := app.NewReporter(sink, fallback.NewFileWriter(cfg.Report.FallbackDir), log)
	service := app.NewStudyService(store, reporter, cfg.StudyConfig(), log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, log).ServeWS)
	transport.NewRESTHandler(service, log).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting study service",
			zap.String("port", finalPort),
			zap.Bool("remote_online", reporter.Online()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	service.Wait()
	if counter, ok := store.(stageCounter); ok {
		logStageCounts(log, counter.StageCounts())
	}
	return err
}

type stageCounter interface {
	StageCounts() map[domain.Stage]int
}

// logStageCounts records how far the sessions still open at shutdown got.
func logStageCounts(log *zap.Logger, counts map[domain.Stage]int) {
	fields := make([]zap.Field, 0, len(counts))
	for stage, n := range counts {
		fields = append(fields, zap.Int(stage.String(), n))
	}
	log.Info("open sessions at shutdown", fields...)
}

// buildSink picks the report transport from the endpoint scheme. An empty
// endpoint yields a nil sink so every report is written locally.
func buildSink(ctx context.Context, cfg config.Config, log *zap.Logger) (app.Sink, func(), error) {
	endpoint := strings.TrimSpace(cfg.Report.Endpoint)
	timeout := config.TTLDuration(cfg.Report.Timeout, 10*time.Second)
	switch {
	case endpoint == "":
		log.Warn("no report endpoint configured, reports go to local files",
			zap.String("dir", cfg.Report.FallbackDir))
		return nil, func() {}, nil
	case isPostgresDSN(endpoint):
		if err := runMigrations(ctx, endpoint, log); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, endpoint)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewEventSink(pool), pool.Close, nil
	default:
		return remote.NewHTTPSink(endpoint, timeout), func() {}, nil
	}
}

func isPostgresDSN(endpoint string) bool {
	return strings.HasPrefix(endpoint, "postgres://") || strings.HasPrefix(endpoint, "postgresql://")
}
