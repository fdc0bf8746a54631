package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS extraction_attempts (
	id           BIGSERIAL PRIMARY KEY,
	request_id   UUID        NOT NULL,
	document     TEXT        NOT NULL,
	position     SMALLINT    NOT NULL,
	stage        TEXT        NOT NULL,
	backend      TEXT        NOT NULL DEFAULT '',
	accepted     BOOLEAN     NOT NULL,
	duration_ms  INTEGER     NOT NULL,
	error        TEXT        NOT NULL DEFAULT '',
	outcome      TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS extraction_attempts_created_at_idx ON extraction_attempts (created_at);
`

const insertAttemptSQL = `
	INSERT INTO extraction_attempts (
		request_id, document, position, stage, backend,
		accepted, duration_ms, error, outcome, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// maxErrorLength bounds the stored error text.
const maxErrorLength = 500

// AttemptRow is one stored stage attempt. It carries no extracted values.
type AttemptRow struct {
	RequestID  string
	Document   string
	Position   int
	Stage      string
	Backend    string
	Accepted   bool
	DurationMS int64
	Error      string
	Outcome    string
	CreatedAt  time.Time
}

// StageStat summarizes the attempts of one stage.
type StageStat struct {
	Document string  `json:"document"`
	Stage    string  `json:"stage"`
	Attempts int64   `json:"attempts"`
	Accepted int64   `json:"accepted"`
	Errors   int64   `json:"errors"`
	AvgMS    float64 `json:"avgMs"`
}

// EnsureSchema creates the attempt table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record stores every attempt of trace in one batch.
func (s *Store) Record(ctx context.Context, trace models.ExtractionTrace) error {
	rows := AttemptRows(trace)
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertAttemptSQL,
			r.RequestID, r.Document, r.Position, r.Stage, r.Backend,
			r.Accepted, r.DurationMS, r.Error, r.Outcome, r.CreatedAt)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert attempts: %w", err)
	}
	return nil
}

// StageStats aggregates the attempts recorded since the given time.
func (s *Store) StageStats(ctx context.Context, since time.Time) ([]StageStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			document,
			stage,
			COUNT(*) AS attempts,
			COUNT(*) FILTER (WHERE accepted) AS accepted,
			COUNT(*) FILTER (WHERE error <> '') AS errors,
			COALESCE(AVG(duration_ms), 0) AS avg_ms
		FROM extraction_attempts
		WHERE created_at >= $1
		GROUP BY document, stage
		ORDER BY document, stage
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StageStat
	for rows.Next() {
		var st StageStat
		if err := rows.Scan(&st.Document, &st.Stage, &st.Attempts, &st.Accepted, &st.Errors, &st.AvgMS); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// AttemptRows flattens a trace into table rows.
func AttemptRows(trace models.ExtractionTrace) []AttemptRow {
	rows := make([]AttemptRow, 0, len(trace.Attempts))
	for i, a := range trace.Attempts {
		errText := a.Error
		if len(errText) > maxErrorLength {
			errText = errText[:maxErrorLength]
		}
		rows = append(rows, AttemptRow{
			RequestID:  trace.RequestID,
			Document:   string(trace.DocumentType),
			Position:   i + 1,
			Stage:      string(a.Stage),
			Backend:    a.Backend,
			Accepted:   a.Accepted,
			DurationMS: a.Duration.Milliseconds(),
			Error:      errText,
			Outcome:    trace.Outcome,
			CreatedAt:  trace.StartedAt,
		})
	}
	return rows
}
