package dto

type PresignedURLRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileType string `json:"file_type" binding:"required"`
	FileSize int64  `json:"file_size" binding:"required"`
}

type PresignedURLResponse struct {
	UploadURL   string `json:"upload_url"`
	FileKey     string `json:"file_key"`
	Bucket      string `json:"bucket"`
	Region      string `json:"region"`
	ExpiresIn   int    `json:"expires_in"`
	MaxFileSize int64  `json:"max_file_size"`
}

type ConfirmUploadRequest struct {
	FileKey string `json:"file_key" binding:"required"`
}

type ConfirmUploadResponse struct {
	Status   string `json:"status"`
	FileKey  string `json:"file_key"`
	FileSize int64  `json:"file_size"`
}

type CleanupUploadRequest struct {
	FileKey string `json:"file_key" binding:"required"`
}

type CleanupUploadResponse struct {
	Status  string `json:"status"`
	FileKey string `json:"file_key"`
	Message string `json:"message"`
}

type UploadStatusResponse struct {
	Status   string `json:"status"`
	FileKey  string `json:"file_key"`
	FileSize int64  `json:"file_size,omitempty"`
}
