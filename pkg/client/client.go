// Package client provides a Go client for the conversion API and a pipeline
// that drives the full upload, convert, download flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// APIError is a non-2xx response from the API. Message carries the server's
// error body verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// PresignedURL is the response to a presigned upload request
type PresignedURL struct {
	UploadURL   string `json:"upload_url"`
	FileKey     string `json:"file_key"`
	Bucket      string `json:"bucket"`
	Region      string `json:"region"`
	ExpiresIn   int    `json:"expires_in"`
	MaxFileSize int64  `json:"max_file_size"`
}

// ConfirmResult is the response to an upload confirmation
type ConfirmResult struct {
	Status   string `json:"status"`
	FileKey  string `json:"file_key"`
	FileSize int64  `json:"file_size"`
}

// JobStatus is the full job view returned by the status endpoint
type JobStatus struct {
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

// Download is the response to a download URL request
type Download struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"`
	FileName    string `json:"file_name"`
}

// Client talks to the conversion API. It keeps the anonymous session cookie
// across requests so uploads and jobs stay scoped to one session.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the given base URL
// (e.g. "http://localhost:8080")
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
		},
	}, nil
}

// doJSON performs a JSON request against the API and decodes the response
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Message string `json:"message"`
		}
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Message != "" {
			msg = errBody.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// GetPresignedURL requests an upload URL for a file
func (c *Client) GetPresignedURL(ctx context.Context, fileName, fileType string, fileSize int64) (*PresignedURL, error) {
	req := map[string]interface{}{
		"file_name": fileName,
		"file_type": fileType,
		"file_size": fileSize,
	}

	var out PresignedURL
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/upload/presigned-url", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile PUTs file data directly to a presigned URL. The request bypasses
// the API entirely; only the object store sees the bytes.
func (c *Client) UploadFile(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}

	return nil
}

// ConfirmUpload verifies that the object behind fileKey exists in storage
func (c *Client) ConfirmUpload(ctx context.Context, fileKey string) (*ConfirmResult, error) {
	req := map[string]string{"file_key": fileKey}

	var out ConfirmResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/upload/confirm-upload", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CleanupUpload removes an uploaded object. Safe to call for keys that no
// longer exist.
func (c *Client) CleanupUpload(ctx context.Context, fileKey string) error {
	req := map[string]string{"file_key": fileKey}
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/upload/cleanup-upload", req, nil)
}

// StartJob submits a conversion job over the given file keys
func (c *Client) StartJob(ctx context.Context, toolType string, fileKeys []string, compressionLevel string) (string, error) {
	req := map[string]interface{}{
		"tool_type": toolType,
		"file_keys": fileKeys,
	}
	if compressionLevel != "" {
		req["compression_level"] = compressionLevel
	}

	var out struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/job/start", req, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// GetJobStatus reads the current job view
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/job/"+jobID+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMyJobs lists the session's jobs, newest first
func (c *Client) ListMyJobs(ctx context.Context) ([]JobStatus, error) {
	var out struct {
		Jobs []JobStatus `json:"jobs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/job/my-jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetDownloadURL requests a signed download URL for a completed job
func (c *Client) GetDownloadURL(ctx context.Context, jobID string) (*Download, error) {
	var out Download
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/download/"+jobID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
