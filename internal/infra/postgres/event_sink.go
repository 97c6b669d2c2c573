package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"study-session-service/internal/domain"
)

// EventSink archives stage reports in Postgres. A committed insert is the
// acknowledgment; a repeated (participant, stage) pair is not.
type EventSink struct {
	pool *pgxpool.Pool
}

func NewEventSink(pool *pgxpool.Pool) *EventSink {
	return &EventSink{pool: pool}
}

func (s *EventSink) Send(ctx context.Context, report domain.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO stage_events (participant_id, stage, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (participant_id, stage) DO NOTHING`,
		report.ParticipantID, string(report.Stage), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert stage event: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrNotAcknowledged
	}
	return nil
}

// Events returns the archived reports for a participant in insertion order.
func (s *EventSink) Events(ctx context.Context, participantID string) ([]domain.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM stage_events WHERE participant_id=$1 ORDER BY id`, participantID)
	if err != nil {
		return nil, fmt.Errorf("query stage events: %w", err)
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		var report domain.Report
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("unmarshal stage event: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
