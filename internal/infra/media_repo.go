package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vovarama1992/whisperer/internal/models"
	"github.com/Vovarama1992/whisperer/internal/ports"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recordings (
	id          TEXT PRIMARY KEY,
	file_path   TEXT NOT NULL,
	sample_rate INTEGER NOT NULL,
	samples     INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS transcripts (
	id         TEXT PRIMARY KEY,
	file_path  TEXT NOT NULL,
	segments   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS recordings_created_at_idx ON recordings (created_at DESC);
CREATE INDEX IF NOT EXISTS transcripts_created_at_idx ON transcripts (created_at DESC);
`

type PostgresTranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTranscriptRepo(pool *pgxpool.Pool) *PostgresTranscriptRepo {
	return &PostgresTranscriptRepo{pool: pool}
}

var _ ports.TranscriptRepository = (*PostgresTranscriptRepo)(nil)

func (r *PostgresTranscriptRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresTranscriptRepo) SaveRecording(ctx context.Context, rec *models.Recording) error {
	query := `
		INSERT INTO recordings (id, file_path, sample_rate, samples, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.FilePath, rec.SampleRate, rec.Samples, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

func (r *PostgresTranscriptRepo) SaveTranscript(ctx context.Context, t *models.Transcript) error {
	segs, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	query := `
		INSERT INTO transcripts (id, file_path, segments, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, query, t.ID, t.FilePath, segs, t.CreatedAt); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (r *PostgresTranscriptRepo) ListRecordings(ctx context.Context, limit int) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_path, sample_rate, samples, duration_ms, created_at
		FROM recordings
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	out := []models.Recording{}
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.SampleRate, &rec.Samples, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresTranscriptRepo) ListTranscripts(ctx context.Context, limit int) ([]models.Transcript, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_path, segments, created_at
		FROM transcripts
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	out := []models.Transcript{}
	for rows.Next() {
		var (
			t   models.Transcript
			raw []byte
			at  time.Time
		)
		if err := rows.Scan(&t.ID, &t.FilePath, &raw, &at); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		if err := json.Unmarshal(raw, &t.Segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
		t.CreatedAt = at
		out = append(out, t)
	}
	return out, rows.Err()
}
