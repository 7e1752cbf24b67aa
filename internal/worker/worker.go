package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ndthanh/convert-be/internal/worker/domain"
	"github.com/ndthanh/convert-be/internal/worker/storage"
	"github.com/ndthanh/convert-be/shared/postgresql"
	"github.com/ndthanh/convert-be/shared/rabbitmq"
)

// JobStore is the database surface the worker needs
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	UpdateJobResult(ctx context.Context, jobID, status, resultKey, errorMsg string) error
	MarkJobForRetry(ctx context.Context, jobID, errorMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
	FailAbandonedJobs(ctx context.Context, cutoff time.Time) ([]string, error)
	ReclaimAbandonedJobs(ctx context.Context, cutoff time.Time) ([]string, error)
	TouchStalledPendingJobs(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Publisher republishes job ids whose original queue message is gone
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// ObjectStore is the object storage surface the worker needs
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// StatusCache invalidates cached job views after status transitions
type StatusCache interface {
	Invalidate(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	DBClient          *postgresql.Client
	RabbitClient      *rabbitmq.Client
	Objects           ObjectStore
	Cache             StatusCache
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	QueueName         string
}

// Worker consumes job messages and runs file conversions
type Worker struct {
	logger            *slog.Logger
	storage           JobStore
	objects           ObjectStore
	cache             StatusCache
	queue             Publisher
	rabbitClient      *rabbitmq.Client
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	workerID          string
	rabbitMQQueueName string
	jobsChan          chan *domain.JobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}

	return &Worker{
		logger:            cfg.Logger,
		storage:           storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		objects:           cfg.Objects,
		cache:             cfg.Cache,
		queue:             cfg.RabbitClient,
		rabbitClient:      cfg.RabbitClient,
		concurrency:       cfg.Concurrency,
		prefetchCount:     cfg.PrefetchCount,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		workerID:          fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8]),
		rabbitMQQueueName: cfg.QueueName,
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until ctx is canceled
// or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startStaleJobSweeper(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...",
		slog.String("worker_id", w.workerID),
	)
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
