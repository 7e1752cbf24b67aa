package dto

type StartJobRequest struct {
	ToolType         string   `json:"tool_type" binding:"required"`
	FileKeys         []string `json:"file_keys" binding:"required"`
	CompressionLevel string   `json:"compression_level"`
}

type StartJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type JobStatusResponse struct {
	ID               string   `json:"id"`
	Status           string   `json:"status"`
	ToolType         string   `json:"tool_type"`
	InputFiles       []string `json:"input_files"`
	ResultKey        string   `json:"result_key,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	CreatedAt        string   `json:"created_at"`
	CompletedAt      string   `json:"completed_at,omitempty"`
	CompressionLevel string   `json:"compression_level,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobStatusResponse `json:"jobs"`
}

type DeleteJobResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"`
	FileName    string `json:"file_name"`
}
