package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ndthanh/convert-be/internal/api/model"
)

// ObjectStore is the slice of the object storage gateway the handlers need
type ObjectStore interface {
	PresignedUpload(ctx context.Context, key string) (string, error)
	PresignedDownload(ctx context.Context, key, fileName string) (string, error)
	StatObject(ctx context.Context, key string) (int64, error)
	RemoveObject(ctx context.Context, key string) error
	Bucket() string
	Region() string
	Expiry() time.Duration
}

// JobStore is the durable job record store
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobsBySession(ctx context.Context, sessionID string, limit int) ([]model.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Publisher hands job ids off to the worker pool
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// StatusCache caches job status views on the polling read path
type StatusCache interface {
	GetJobView(ctx context.Context, jobID string) ([]byte, error)
	SetJobView(ctx context.Context, jobID string, view []byte) error
	Invalidate(ctx context.Context, jobID string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger           *slog.Logger
	Store            JobStore
	Objects          ObjectStore
	Queue            Publisher
	Cache            StatusCache
	MaxFileSizeBytes int64
	AllowedFileTypes []string
	MaxRetries       int
}

// sessionID returns the anonymous session id set by the session middleware
func sessionID(c *gin.Context) string {
	if id := c.GetString("session_id"); id != "" {
		return id
	}
	return "anonymous"
}

// errorBody is the uniform non-2xx response shape
func errorBody(message string) gin.H {
	return gin.H{"message": message}
}
