package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ndthanh/convert-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	r.Use(SessionMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "convert-api-service",
		})
	})

	uploadHandler := handler.NewUploadHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	downloadHandler := handler.NewDownloadHandler(deps)

	v1 := r.Group("/api/v1")
	{
		upload := v1.Group("/upload")
		{
			upload.POST("/presigned-url", uploadHandler.GetPresignedURL)
			upload.POST("/confirm-upload", uploadHandler.ConfirmUpload)
			upload.DELETE("/cleanup-upload", uploadHandler.CleanupUpload)
			upload.GET("/status/*file_key", uploadHandler.GetUploadStatus)
		}

		job := v1.Group("/job")
		{
			job.POST("/start", jobHandler.StartJob)
			job.GET("/my-jobs", jobHandler.ListMyJobs)
			job.GET("/:job_id/status", jobHandler.GetJobStatus)
			job.DELETE("/:job_id", jobHandler.DeleteJob)
		}

		v1.GET("/download/:job_id", downloadHandler.GetDownloadURL)
	}

	return r
}
