package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/iconpress/iconpress/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	prompt TEXT NOT NULL,
	style TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL,
	remove_background BOOLEAN NOT NULL DEFAULT FALSE,
	webhook_url TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_logs (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	job_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	pixels_processed BIGINT NOT NULL,
	bytes_out BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore persists generation jobs and usage rows. It satisfies both
// GenerationStore and UsageStore.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, job domain.GenerationJob) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO generations (id, user_id, status, prompt, style, format, remove_background, webhook_url, object_key, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID,
		job.UserID,
		job.Status,
		job.Prompt,
		job.Style,
		job.Format,
		job.RemoveBackground,
		job.WebhookURL,
		job.ObjectKey,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.GenerationJob, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, status, prompt, style, format, remove_background, webhook_url, object_key, error, created_at, updated_at
		 FROM generations
		 WHERE id = $1`,
		id,
	)

	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.Prompt,
		&job.Style,
		&job.Format,
		&job.RemoveBackground,
		&job.WebhookURL,
		&job.ObjectKey,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.GenerationJob{}, false, nil
		}
		return domain.GenerationJob{}, false, fmt.Errorf("query generation: %w", err)
	}
	return job, true, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id, status string) (domain.GenerationJob, error) {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE generations SET status = $1, updated_at = $2 WHERE id = $3`,
		status,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.GenerationJob{}, fmt.Errorf("update generation status: %w", err)
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.GenerationJob{}, err
	}
	if !ok {
		return domain.GenerationJob{}, ErrJobNotFound
	}
	return job, nil
}

func (s *PostgresStore) SetResult(ctx context.Context, id, objectKey string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE generations SET object_key = $1, updated_at = $2 WHERE id = $3`,
		objectKey,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set generation result: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetError(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE generations SET error = $1, updated_at = $2 WHERE id = $3`,
		message,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set generation error: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO usage_logs (user_id, job_id, operation, pixels_processed, bytes_out, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		usage.UserID,
		usage.JobID,
		usage.Operation,
		usage.PixelsProcessed,
		usage.BytesOut,
		usage.ComputeTimeMS,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}
