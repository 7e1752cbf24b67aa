package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ndthanh/convert-be/internal/api/domain"
	"github.com/ndthanh/convert-be/internal/api/model"
	"github.com/ndthanh/convert-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			id, session_id, tool_type, status, input_files,
			compression_level, retry_count, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.SessionID,
		job.ToolType,
		job.Status,
		job.InputFiles,
		job.CompressionLevel,
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			id, session_id, tool_type, status, input_files,
			result_key, error_message, compression_level, worker_id,
			retry_count, max_retries, created_at, updated_at,
			started_at, completed_at, last_heartbeat_at
		FROM jobs
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Storage) ListJobsBySession(ctx context.Context, sessionID string, limit int) ([]model.Job, error) {
	query := `
		SELECT
			id, session_id, tool_type, status, input_files,
			result_key, error_message, compression_level, worker_id,
			retry_count, max_retries, created_at, updated_at,
			started_at, completed_at, last_heartbeat_at
		FROM jobs
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}
