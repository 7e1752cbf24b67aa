package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ndthanh/convert-be/internal/worker/domain"
	"github.com/ndthanh/convert-be/shared/objectstore"
)

// processJob runs a single job end to end: claim, download inputs, convert,
// upload the result, record the terminal status. The returned error drives the
// ACK/NACK decision in the pool.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	// Claim the job (PENDING -> PROCESSING)
	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	w.invalidateView(ctx, job.ID)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.ID, heartbeatDone)
	defer close(heartbeatDone)

	// Download inputs in the order the job listed them; order is part of the
	// merge contract
	inputs := make([][]byte, 0, len(job.InputFiles))
	for _, key := range job.InputFiles {
		data, err := w.objects.GetObject(jobCtx, key)
		if err != nil {
			if errors.Is(err, objectstore.ErrObjectNotFound) {
				// The input is gone; retrying cannot bring it back
				return w.failJob(ctx, job, fmt.Errorf("input file missing: %s", key), false)
			}
			return w.failJob(ctx, job, fmt.Errorf("failed to download input %s: %w", key, err), true)
		}
		inputs = append(inputs, data)
	}

	result, err := executeTool(job, inputs)
	if err != nil {
		if jobCtx.Err() != nil {
			return w.failJob(ctx, job, fmt.Errorf("job timed out after %s: %w", w.jobTimeout, err), true)
		}
		// Conversion failures are deterministic; the same inputs fail again
		return w.failJob(ctx, job, fmt.Errorf("conversion failed: %w", err), false)
	}

	resultKey := fmt.Sprintf("results/%s/%s", job.ID, result.FileName)
	if err := w.objects.PutObject(jobCtx, resultKey, result.Data, result.ContentType); err != nil {
		return w.failJob(ctx, job, fmt.Errorf("failed to upload result: %w", err), true)
	}

	if err := w.storage.UpdateJobResult(ctx, job.ID, domain.JobStatusCompleted, resultKey, ""); err != nil {
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		// The artifact exists; a requeued run would reconverge on the same key
		return w.failJob(ctx, job, fmt.Errorf("failed to record completion: %w", err), true)
	}

	w.invalidateView(ctx, job.ID)

	w.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("tool_type", job.ToolType),
		slog.String("result_key", resultKey),
	)

	return nil
}

// failJob records a failure. Transient failures with retry budget left return
// the job to PENDING and requeue the message; everything else is terminal.
func (w *Worker) failJob(ctx context.Context, job *domain.Job, cause error, transient bool) error {
	if transient && job.RetryCount < job.MaxRetries {
		w.logger.Info("Job will be retried",
			slog.String("job_id", job.ID),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
			slog.String("error", cause.Error()),
		)

		if err := w.storage.MarkJobForRetry(ctx, job.ID, cause.Error()); err != nil {
			w.logger.Error("Failed to mark job for retry",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		w.invalidateView(ctx, job.ID)

		return domain.NewRetryableError(cause)
	}

	if err := w.storage.UpdateJobResult(ctx, job.ID, domain.JobStatusFailed, "", cause.Error()); err != nil {
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
	w.invalidateView(ctx, job.ID)

	if transient {
		w.logger.Warn("Job exceeded max retries",
			slog.String("job_id", job.ID),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
		)
		return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, cause)
	}

	return cause
}

// invalidateView drops the cached status view so the next poll reads fresh state
func (w *Worker) invalidateView(ctx context.Context, jobID string) {
	if err := w.cache.Invalidate(ctx, jobID); err != nil {
		w.logger.Warn("Failed to invalidate job view cache",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp while
// the conversion runs
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	interval := w.heartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Debug("Job heartbeat started",
		slog.String("job_id", jobID),
	)

	for {
		select {
		case <-done:
			w.logger.Debug("Job heartbeat stopped",
				slog.String("job_id", jobID),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Job heartbeat stopped - context canceled",
				slog.String("job_id", jobID),
			)
			return

		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
