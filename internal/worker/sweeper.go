package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// staleClaimFactor is how many missed heartbeats mark a claim as abandoned
const staleClaimFactor = 3

// startStaleJobSweeper periodically rescues jobs whose worker died mid-flight.
// A crashed worker leaves the row PROCESSING with a stale heartbeat and its
// message unacked on a dead channel, so without the sweep such jobs never
// reach a terminal state.
func (w *Worker) startStaleJobSweeper(ctx context.Context) {
	interval := w.sweepInterval()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		w.logger.Info("Stale job sweeper started",
			slog.Duration("interval", interval),
			slog.Duration("stale_after", staleClaimFactor*interval),
		)

		for {
			select {
			case <-w.stopChan:
				w.logger.Info("Stale job sweeper stopping - stopChan closed")
				return

			case <-ctx.Done():
				w.logger.Info("Stale job sweeper stopping - context canceled")
				return

			case <-ticker.C:
				w.sweepStaleJobs(ctx)
			}
		}
	}()
}

// sweepStaleJobs runs one sweep pass: abandoned claims past their retry
// budget go FAILED, the rest go back to PENDING and are republished, and
// PENDING rows whose message was lost are republished too.
func (w *Worker) sweepStaleJobs(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-staleClaimFactor * w.sweepInterval())

	failed, err := w.storage.FailAbandonedJobs(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to fail abandoned jobs",
			slog.String("error", err.Error()),
		)
	}
	for _, id := range failed {
		w.logger.Warn("Abandoned job failed after exhausting retries",
			slog.String("job_id", id),
		)
		w.invalidateView(ctx, id)
	}

	reclaimed, err := w.storage.ReclaimAbandonedJobs(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to reclaim abandoned jobs",
			slog.String("error", err.Error()),
		)
	}
	for _, id := range reclaimed {
		w.invalidateView(ctx, id)
		w.republishJob(ctx, id)
	}

	// A PENDING row older than the cutoff has no live message; the publish
	// failed or the broker lost it
	stalled, err := w.storage.TouchStalledPendingJobs(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to touch stalled pending jobs",
			slog.String("error", err.Error()),
		)
		return
	}
	for _, id := range stalled {
		w.republishJob(ctx, id)
	}
}

// republishJob puts a job id back on the queue. A failed republish is left to
// the next sweep pass; the row stays PENDING until a message lands.
func (w *Worker) republishJob(ctx context.Context, jobID string) {
	message, err := json.Marshal(map[string]string{"job_id": jobID})
	if err != nil {
		return
	}

	if err := w.queue.PublishWithRetry(ctx, message, "application/json"); err != nil {
		w.logger.Error("Failed to republish job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Requeued stale job",
		slog.String("job_id", jobID),
	)
}

func (w *Worker) sweepInterval() time.Duration {
	if w.heartbeatInterval > 0 {
		return w.heartbeatInterval
	}
	return 30 * time.Second
}
