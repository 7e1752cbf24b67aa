package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ndthanh/convert-be/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob attempts to claim a job using optimistic locking.
// Only a PENDING job can be claimed; the conditional UPDATE guarantees that
// at most one worker wins even when the same message is delivered twice.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = $3
		  AND status = $4
		RETURNING id, tool_type, input_files, compression_level, retry_count, max_retries
	`

	var job domain.Job
	var inputFiles pq.StringArray
	var compressionLevel sql.NullString

	err := s.db.QueryRowContext(ctx, query, domain.JobStatusProcessing, workerID, jobID, domain.JobStatusPending).Scan(
		&job.ID,
		&job.ToolType,
		&inputFiles,
		&compressionLevel,
		&job.RetryCount,
		&job.MaxRetries,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.InputFiles = inputFiles
	if compressionLevel.Valid {
		job.CompressionLevel = compressionLevel.String
	}
	job.Status = domain.JobStatusProcessing
	job.WorkerID = workerID

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("tool_type", job.ToolType),
	)

	return &job, nil
}

// UpdateJobResult moves the job to a terminal status. resultKey is set on
// success, errorMsg on failure; completed_at is stamped exactly once.
func (s *Storage) UpdateJobResult(ctx context.Context, jobID, status, resultKey, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1::text,
			result_key = NULLIF($2, ''),
			error_message = NULLIF($3, ''),
			completed_at = CASE
				WHEN $1::text IN ($4::text, $5::text) THEN NOW()
				ELSE completed_at
			END,
			updated_at = NOW()
		WHERE id = $6
	`

	_, err := s.db.ExecContext(ctx, query, status, resultKey, errorMsg, domain.JobStatusCompleted, domain.JobStatusFailed, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job result: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}

// MarkJobForRetry returns a failed job to PENDING so a redelivered message can
// claim it again, and counts the attempt. The transient failure is logged, not
// stored: error_message must stay empty on every non-FAILED row.
func (s *Storage) MarkJobForRetry(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    error_message = NULL,
		    worker_id = NULL,
		    started_at = NULL,
		    last_heartbeat_at = NULL,
		    updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, domain.JobStatusPending, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job for retry: %w", err)
	}

	s.logger.Info("Job marked for retry",
		slog.String("job_id", jobID),
		slog.String("error", errorMsg),
	)

	return nil
}

// FailAbandonedJobs marks PROCESSING jobs whose heartbeat went silent before
// cutoff and whose retry budget is spent as FAILED. Returns the affected ids.
func (s *Storage) FailAbandonedJobs(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    worker_id = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $3
		  AND last_heartbeat_at < $4
		  AND retry_count >= max_retries
		RETURNING id
	`

	var ids []string
	err := s.db.SelectContext(ctx, &ids, query,
		domain.JobStatusFailed, "worker lost during processing", domain.JobStatusProcessing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to fail abandoned jobs: %w", err)
	}

	return ids, nil
}

// ReclaimAbandonedJobs returns PROCESSING jobs whose heartbeat went silent
// before cutoff to PENDING and counts the attempt. The affected ids are
// returned so the caller can republish them; the original message died with
// the worker that held it.
func (s *Storage) ReclaimAbandonedJobs(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    error_message = NULL,
		    worker_id = NULL,
		    started_at = NULL,
		    last_heartbeat_at = NULL,
		    updated_at = NOW()
		WHERE status = $2
		  AND last_heartbeat_at < $3
		  AND retry_count < max_retries
		RETURNING id
	`

	var ids []string
	err := s.db.SelectContext(ctx, &ids, query,
		domain.JobStatusPending, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim abandoned jobs: %w", err)
	}

	return ids, nil
}

// TouchStalledPendingJobs stamps updated_at on PENDING jobs untouched since
// cutoff and returns their ids for republishing. The stamp spaces republishes
// one sweep window apart.
func (s *Storage) TouchStalledPendingJobs(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE jobs
		SET updated_at = NOW()
		WHERE status = $1
		  AND updated_at < $2
		RETURNING id
	`

	var ids []string
	err := s.db.SelectContext(ctx, &ids, query, domain.JobStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to touch stalled pending jobs: %w", err)
	}

	return ids, nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a job in flight
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be processing)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}
