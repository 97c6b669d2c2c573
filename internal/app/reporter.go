package app

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"study-session-service/internal/domain"
)

// Sink delivers a report to the remote logging endpoint. A nil error means
// the endpoint acknowledged the report.
type Sink interface {
	Send(ctx context.Context, report domain.Report) error
}

// FallbackWriter stores a report locally and returns the file name used.
type FallbackWriter interface {
	Write(ctx context.Context, report domain.Report) (string, error)
}

// ReportOutcome describes what happened to one report.
type ReportOutcome struct {
	Delivered    bool
	FallbackFile string
	Err          error
}

// Reporter sends each stage-completion report to the sink and falls back to
// a local file when the sink is missing, fails or does not acknowledge.
type Reporter struct {
	sink     Sink
	fallback FallbackWriter
	log      *zap.Logger
	online   atomic.Bool
	sf       singleflight.Group
}

// NewReporter builds a reporter. A nil sink puts it in local-fallback mode
// for every report.
func NewReporter(sink Sink, fallback FallbackWriter, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reporter{sink: sink, fallback: fallback, log: log.Named("reporter")}
	r.online.Store(sink != nil)
	return r
}

// Online reports whether the remote endpoint is configured and has not failed yet.
func (r *Reporter) Online() bool {
	return r.online.Load()
}

// Report delivers one report. Concurrent calls for the same participant and
// stage share a single delivery.
func (r *Reporter) Report(ctx context.Context, report domain.Report) ReportOutcome {
	key := report.ParticipantID + ":" + string(report.Stage)
	v, _, _ := r.sf.Do(key, func() (interface{}, error) {
		return r.deliver(ctx, report), nil
	})
	return v.(ReportOutcome)
}

func (r *Reporter) deliver(ctx context.Context, report domain.Report) ReportOutcome {
	log := r.log.With(
		zap.String("participant_id", report.ParticipantID),
		zap.String("stage", string(report.Stage)),
	)

	err := domain.ErrNoEndpoint
	if r.sink != nil {
		err = r.sink.Send(ctx, report)
	}
	if err == nil {
		log.Info("report delivered")
		return ReportOutcome{Delivered: true}
	}

	r.online.Store(false)
	if errors.Is(err, domain.ErrNoEndpoint) {
		log.Debug("no endpoint configured, writing local file")
	} else {
		log.Warn("report delivery failed, writing local file", zap.Error(err))
	}

	outcome := ReportOutcome{Err: err}
	if r.fallback == nil {
		outcome.FallbackFile = domain.FallbackFilename(report.ParticipantID, report.Stage)
		return outcome
	}
	name, ferr := r.fallback.Write(ctx, report)
	if ferr != nil {
		log.Error("fallback write failed", zap.Error(ferr))
		outcome.Err = errors.Join(err, ferr)
	}
	outcome.FallbackFile = name
	if name == "" {
		outcome.FallbackFile = domain.FallbackFilename(report.ParticipantID, report.Stage)
	}
	return outcome
}
