package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ndthanh/convert-be/internal/api/dto"
	"github.com/ndthanh/convert-be/shared/objectstore"
)

// unsafeFileNameChars strips everything outside [A-Za-z0-9_.-] from file names
// before they become part of a storage key
var unsafeFileNameChars = regexp.MustCompile(`[^\w\-.]`)

// UploadHandler handles presigned upload issuance, confirmation, and cleanup
type UploadHandler struct {
	logger           *slog.Logger
	objects          ObjectStore
	maxFileSizeBytes int64
	allowedFileTypes map[string]struct{}
}

// NewUploadHandler creates a new UploadHandler instance
func NewUploadHandler(deps *Dependencies) *UploadHandler {
	allowed := make(map[string]struct{}, len(deps.AllowedFileTypes))
	for _, t := range deps.AllowedFileTypes {
		allowed[t] = struct{}{}
	}

	return &UploadHandler{
		logger:           deps.Logger,
		objects:          deps.Objects,
		maxFileSizeBytes: deps.MaxFileSizeBytes,
		allowedFileTypes: allowed,
	}
}

// GetPresignedURL handles POST /api/v1/upload/presigned-url
// Issues a time-bounded URL for a direct-to-storage PUT
func (h *UploadHandler) GetPresignedURL(c *gin.Context) {
	var req dto.PresignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid presigned URL request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, errorBody("file_name, file_type and file_size are required"))
		return
	}

	if req.FileSize > h.maxFileSizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody(fmt.Sprintf(
			"file size %d exceeds maximum allowed size %d bytes", req.FileSize, h.maxFileSizeBytes,
		)))
		return
	}

	if _, ok := h.allowedFileTypes[req.FileType]; !ok {
		c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("file type %q not allowed", req.FileType)))
		return
	}

	session := sessionID(c)
	safeName := unsafeFileNameChars.ReplaceAllString(req.FileName, "")
	fileKey := fmt.Sprintf("uploads/%s/%s-%s", session, uuid.New().String(), safeName)

	uploadURL, err := h.objects.PresignedUpload(c.Request.Context(), fileKey)
	if err != nil {
		h.logger.Error("Failed to generate presigned upload URL",
			slog.String("file_key", fileKey),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to generate upload URL"))
		return
	}

	h.logger.Info("Generated presigned upload URL",
		slog.String("session_id", session),
		slog.String("file_key", fileKey),
	)

	c.JSON(http.StatusOK, dto.PresignedURLResponse{
		UploadURL:   uploadURL,
		FileKey:     fileKey,
		Bucket:      h.objects.Bucket(),
		Region:      h.objects.Region(),
		ExpiresIn:   int(h.objects.Expiry().Seconds()),
		MaxFileSize: h.maxFileSizeBytes,
	})
}

// ConfirmUpload handles POST /api/v1/upload/confirm-upload
// Verifies the object actually exists at the key. This is the single source of
// truth for "this file exists and is usable", independent of whether the client
// ever observed its PUT response.
func (h *UploadHandler) ConfirmUpload(c *gin.Context) {
	var req dto.ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("file_key is required"))
		return
	}

	size, err := h.objects.StatObject(c.Request.Context(), req.FileKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, errorBody("file not found in storage"))
			return
		}
		h.logger.Error("Failed to confirm upload",
			slog.String("file_key", req.FileKey),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to confirm upload"))
		return
	}

	h.logger.Info("Upload confirmed",
		slog.String("session_id", sessionID(c)),
		slog.String("file_key", req.FileKey),
		slog.Int64("file_size", size),
	)

	c.JSON(http.StatusOK, dto.ConfirmUploadResponse{
		Status:   "confirmed",
		FileKey:  req.FileKey,
		FileSize: size,
	})
}

// CleanupUpload handles DELETE /api/v1/upload/cleanup-upload
// Best-effort delete; removing an already-gone key still succeeds
func (h *UploadHandler) CleanupUpload(c *gin.Context) {
	var req dto.CleanupUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("file_key is required"))
		return
	}

	if err := h.objects.RemoveObject(c.Request.Context(), req.FileKey); err != nil {
		h.logger.Error("Failed to cleanup upload",
			slog.String("file_key", req.FileKey),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to delete file"))
		return
	}

	h.logger.Info("Cleaned up upload",
		slog.String("session_id", sessionID(c)),
		slog.String("file_key", req.FileKey),
	)

	c.JSON(http.StatusOK, dto.CleanupUploadResponse{
		Status:  "deleted",
		FileKey: req.FileKey,
		Message: "file successfully deleted",
	})
}

// GetUploadStatus handles GET /api/v1/upload/status/*file_key
func (h *UploadHandler) GetUploadStatus(c *gin.Context) {
	fileKey := strings.TrimPrefix(c.Param("file_key"), "/")
	if fileKey == "" {
		c.JSON(http.StatusBadRequest, errorBody("file_key is required"))
		return
	}

	size, err := h.objects.StatObject(c.Request.Context(), fileKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			c.JSON(http.StatusOK, dto.UploadStatusResponse{
				Status:  "not_found",
				FileKey: fileKey,
			})
			return
		}
		h.logger.Error("Failed to get upload status",
			slog.String("file_key", fileKey),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorBody("failed to get upload status"))
		return
	}

	c.JSON(http.StatusOK, dto.UploadStatusResponse{
		Status:   "uploaded",
		FileKey:  fileKey,
		FileSize: size,
	})
}
