package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ndthanh/convert-be/internal/api/domain"
	"github.com/ndthanh/convert-be/internal/api/dto"
)

// DownloadHandler resolves signed download URLs for completed jobs
type DownloadHandler struct {
	logger  *slog.Logger
	store   JobStore
	objects ObjectStore
}

// NewDownloadHandler creates a new DownloadHandler instance
func NewDownloadHandler(deps *Dependencies) *DownloadHandler {
	return &DownloadHandler{
		logger:  deps.Logger,
		store:   deps.Store,
		objects: deps.Objects,
	}
}

// GetDownloadURL handles GET /api/v1/download/:job_id
func (h *DownloadHandler) GetDownloadURL(c *gin.Context) {
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
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("failed to get job"))
		return
	}

	if job.Status != domain.JobStatusCompleted {
		c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf(
			"job not completed. current status: %s", job.Status,
		)))
		return
	}

	if !job.ResultKey.Valid || job.ResultKey.String == "" {
		c.JSON(http.StatusNotFound, errorBody("no result file available for this job"))
		return
	}

	// The worker names result objects after the tool, so the key's base name
	// is the download file name
	fileName := path.Base(job.ResultKey.String)
	if fileName == "." || fileName == "/" {
		fileName = domain.ResultFileName(job.ToolType)
	}

	downloadURL, err := h.objects.PresignedDownload(c.Request.Context(), job.ResultKey.String, fileName)
	if err != nil {
		h.logger.Error("Failed to generate download URL",
			slog.String("job_id", jobID),
			slog.String("result_key", job.ResultKey.String),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to generate download URL"))
		return
	}

	h.logger.Info("Generated download URL",
		slog.String("job_id", jobID),
		slog.String("result_key", job.ResultKey.String),
	)

	c.JSON(http.StatusOK, dto.DownloadResponse{
		DownloadURL: downloadURL,
		ExpiresIn:   int(h.objects.Expiry().Seconds()),
		FileName:    fileName,
	})
}
