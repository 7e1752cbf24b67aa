package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ndthanh/convert-be/internal/api/domain"
	"github.com/ndthanh/convert-be/internal/api/dto"
	"github.com/ndthanh/convert-be/internal/api/model"
	"github.com/ndthanh/convert-be/shared/objectstore"
)

const maxListedJobs = 50

// JobHandler handles job submission, status, listing, and deletion
type JobHandler struct {
	logger     *slog.Logger
	store      JobStore
	objects    ObjectStore
	queue      Publisher
	cache      StatusCache
	maxRetries int
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		objects:    deps.Objects,
		queue:      deps.Queue,
		cache:      deps.Cache,
		maxRetries: deps.MaxRetries,
	}
}

// StartJob handles POST /api/v1/job/start
// Validates arity and confirmed inputs, persists the job PENDING, and hands
// the job id to the worker queue.
func (h *JobHandler) StartJob(c *gin.Context) {
	var req dto.StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("tool_type and file_keys are required"))
		return
	}

	if err := domain.ValidateToolInput(req.ToolType, len(req.FileKeys)); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	level := req.CompressionLevel
	if domain.UsesCompressionLevel(req.ToolType) {
		if level == "" {
			level = domain.CompressionMedium
		}
		if !domain.ValidCompressionLevel(level) {
			c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("unknown compression level %q", level)))
			return
		}
	} else {
		level = ""
	}

	// Every input key must reference a confirmed upload
	for _, fileKey := range req.FileKeys {
		if _, err := h.objects.StatObject(c.Request.Context(), fileKey); err != nil {
			if errors.Is(err, objectstore.ErrObjectNotFound) {
				c.JSON(http.StatusNotFound, errorBody(fmt.Sprintf("file not found: %s", fileKey)))
				return
			}
			h.logger.Error("Failed to verify input file",
				slog.String("file_key", fileKey),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, errorBody("failed to verify input files"))
			return
		}
	}

	session := sessionID(c)
	now := time.Now().UTC()
	job := model.Job{
		ID:         uuid.New().String(),
		SessionID:  session,
		ToolType:   req.ToolType,
		Status:     domain.JobStatusPending,
		InputFiles: req.FileKeys,
		MaxRetries: h.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if level != "" {
		job.CompressionLevel = sql.NullString{String: level, Valid: true}
	}

	if err := h.store.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("failed to create job"))
		return
	}

	message, err := json.Marshal(map[string]string{"job_id": job.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to enqueue job"))
		return
	}

	if err := h.queue.PublishWithRetry(c.Request.Context(), message, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to enqueue job"))
		return
	}

	h.logger.Info("Job started",
		slog.String("job_id", job.ID),
		slog.String("session_id", session),
		slog.String("tool_type", job.ToolType),
		slog.Int("input_files", len(job.InputFiles)),
	)

	c.JSON(http.StatusOK, dto.StartJobResponse{
		JobID:   job.ID,
		Status:  "started",
		Message: fmt.Sprintf("job started successfully for %s", req.ToolType),
	})
}

// GetJobStatus handles GET /api/v1/job/:job_id/status
// Serves the cached view when present; falls back to the database and
// repopulates the cache.
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("job_id must be a valid UUID"))
		return
	}

	if cached, err := h.cache.GetJobView(c.Request.Context(), jobID); err != nil {
		h.logger.Warn("Job view cache read failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	} else if cached != nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, errorBody("job not found"))
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("failed to get job"))
		return
	}

	view := jobToStatusResponse(job)

	// Only terminal views are cached; they are immutable, so a write can never
	// race the worker's invalidation into staleness
	if domain.IsTerminal(job.Status) {
		if payload, err := json.Marshal(view); err == nil {
			if err := h.cache.SetJobView(c.Request.Context(), jobID, payload); err != nil {
				h.logger.Warn("Job view cache write failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	c.JSON(http.StatusOK, view)
}

// ListMyJobs handles GET /api/v1/job/my-jobs
// Lists the current session's jobs, newest first
func (h *JobHandler) ListMyJobs(c *gin.Context) {
	session := sessionID(c)

	jobs, err := h.store.ListJobsBySession(c.Request.Context(), session, maxListedJobs)
	if err != nil {
		h.logger.Error("Failed to list jobs",
			slog.String("session_id", session),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to list jobs"))
		return
	}

	views := make([]dto.JobStatusResponse, len(jobs))
	for i := range jobs {
		views[i] = jobToStatusResponse(&jobs[i])
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: views})
}

// DeleteJob handles DELETE /api/v1/job/:job_id
// Deletes the job row and its result object; session-scoped
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("job_id must be a valid UUID"))
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, errorBody("job not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody("failed to get job"))
		return
	}

	session := sessionID(c)
	if job.SessionID != session {
		c.JSON(http.StatusForbidden, errorBody("not authorized to delete this job"))
		return
	}

	if job.ResultKey.Valid {
		if err := h.objects.RemoveObject(c.Request.Context(), job.ResultKey.String); err != nil {
			h.logger.Warn("Failed to delete result object",
				slog.String("job_id", jobID),
				slog.String("result_key", job.ResultKey.String),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := h.store.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.logger.Error("Failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to delete job"))
		return
	}

	if err := h.cache.Invalidate(c.Request.Context(), jobID); err != nil {
		h.logger.Warn("Failed to invalidate job view cache",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("Job deleted",
		slog.String("job_id", jobID),
		slog.String("session_id", session),
	)

	c.JSON(http.StatusOK, dto.DeleteJobResponse{
		Status:  "deleted",
		JobID:   jobID,
		Message: "job deleted successfully",
	})
}

// jobToStatusResponse maps the job record to its public, read-only view.
// result_key appears only on COMPLETED and error_message only on FAILED,
// whatever the row happens to hold.
func jobToStatusResponse(job *model.Job) dto.JobStatusResponse {
	view := dto.JobStatusResponse{
		ID:         job.ID,
		Status:     job.Status,
		ToolType:   job.ToolType,
		InputFiles: job.InputFiles,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		if job.ResultKey.Valid {
			view.ResultKey = job.ResultKey.String
		}
	case domain.JobStatusFailed:
		if job.ErrorMessage.Valid {
			view.ErrorMessage = job.ErrorMessage.String
		}
	}

	if job.CompletedAt.Valid {
		view.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}
	if job.CompressionLevel.Valid {
		view.CompressionLevel = job.CompressionLevel.String
	}

	return view
}
