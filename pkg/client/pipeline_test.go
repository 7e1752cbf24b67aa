package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-process stand-in for the conversion API plus the presigned
// upload target
type fakeAPI struct {
	mu             sync.Mutex
	baseURL        string
	statuses       []string // returned in order; the last repeats
	statusIdx      int
	errorMessage   string
	resultFileName string
	confirmFail    string // file name substring whose confirm returns 404
	jobStarts      int
	uploads        map[string][]byte
}

func newFakeAPI(statuses ...string) *fakeAPI {
	return &fakeAPI{
		statuses:       statuses,
		resultFileName: "merged-document.pdf",
		uploads:        make(map[string][]byte),
	}
}

func (f *fakeAPI) nextStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusIdx < len(f.statuses) {
		s := f.statuses[f.statusIdx]
		f.statusIdx++
		return s
	}
	return f.statuses[len(f.statuses)-1]
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/upload/presigned-url", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileName string `json:"file_name"`
			FileType string `json:"file_type"`
			FileSize int64  `json:"file_size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		key := "uploads/sess/" + req.FileName
		json.NewEncoder(w).Encode(map[string]interface{}{
			"upload_url":    f.baseURL + "/put/" + key,
			"file_key":      key,
			"bucket":        "convert-files",
			"region":        "eu-north-1",
			"expires_in":    3600,
			"max_file_size": int64(100 << 20),
		})
	})

	mux.HandleFunc("/put/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/put/")
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploads[key] = data
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/v1/upload/confirm-upload", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileKey string `json:"file_key"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if f.confirmFail != "" && strings.Contains(req.FileKey, f.confirmFail) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "file not found in storage"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "confirmed",
			"file_key":  req.FileKey,
			"file_size": 123,
		})
	})

	mux.HandleFunc("/api/v1/job/start", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.jobStarts++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"job_id":  "11111111-1111-1111-1111-111111111111",
			"status":  "started",
			"message": "job queued",
		})
	})

	mux.HandleFunc("/api/v1/job/", func(w http.ResponseWriter, r *http.Request) {
		status := f.nextStatus()
		resp := map[string]interface{}{
			"id":          "11111111-1111-1111-1111-111111111111",
			"status":      status,
			"tool_type":   "merge",
			"input_files": []string{"uploads/sess/a.pdf", "uploads/sess/b.pdf"},
			"created_at":  time.Now().UTC().Format(time.RFC3339),
		}
		if status == "FAILED" {
			resp["error_message"] = f.errorMessage
		}
		if status == "COMPLETED" {
			resp["result_key"] = "results/11111111-1111-1111-1111-111111111111/" + f.resultFileName
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/v1/download/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"download_url": f.baseURL + "/files/" + f.resultFileName,
			"expires_in":   3600,
			"file_name":    f.resultFileName,
		})
	})

	return mux
}

func newTestPipeline(t *testing.T, f *fakeAPI, opts Options) (*Pipeline, func()) {
	t.Helper()

	srv := httptest.NewServer(f.handler())
	f.baseURL = srv.URL

	api, err := NewClient(srv.URL)
	require.NoError(t, err)

	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return NewPipeline(api, opts), srv.Close
}

func TestPipeline_MergeHappyPath(t *testing.T) {
	f := newFakeAPI("PENDING", "PENDING", "PROCESSING", "COMPLETED")

	var progress []int
	opts := Options{OnTransition: func(s State) {
		progress = append(progress, s.Progress)
	}}

	p, done := newTestPipeline(t, f, opts)
	defer done()

	require.NoError(t, p.AddFiles(
		File{Name: "a.pdf", Data: []byte("%PDF-a")},
		File{Name: "b.pdf", Data: []byte("%PDF-b")},
	))
	require.True(t, p.CanSubmit("merge"))

	err := p.StartProcessing(context.Background(), "merge", "")
	require.NoError(t, err)

	state := p.State()
	assert.Equal(t, StepDownload, state.Step)
	assert.Equal(t, ProgressDone, state.Progress)
	assert.Equal(t, "merged-document.pdf", state.ResultFileName)
	assert.NotEmpty(t, state.DownloadURL)
	assert.Empty(t, state.ErrorMessage)

	// Checkpoints appear in order even though intermediate snapshots repeat
	assert.Subset(t, progress, []int{25, 50, 75, 100})
	assert.Equal(t, 100, progress[len(progress)-1])

	assert.Equal(t, 1, f.jobStarts)
	assert.Contains(t, f.uploads, "uploads/sess/a.pdf")
	assert.Contains(t, f.uploads, "uploads/sess/b.pdf")
}

func TestPipeline_PendingSkipsToCompleted(t *testing.T) {
	f := newFakeAPI("PENDING", "COMPLETED")

	var progress []int
	p, done := newTestPipeline(t, f, Options{OnTransition: func(s State) {
		progress = append(progress, s.Progress)
	}})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))
	require.NoError(t, p.StartProcessing(context.Background(), "merge", ""))

	assert.NotContains(t, progress, 75, "a fast job never shows the processing checkpoint")
	assert.Equal(t, ProgressDone, p.State().Progress)
}

func TestPipeline_ConfirmFailureAbortsRun(t *testing.T) {
	f := newFakeAPI("PENDING")
	f.confirmFail = "b.pdf"

	p, done := newTestPipeline(t, f, Options{})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))

	err := p.StartProcessing(context.Background(), "merge", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.pdf", "the error names the failing file")

	state := p.State()
	assert.Equal(t, StepError, state.Step)
	assert.Contains(t, state.ErrorMessage, "b.pdf")
	assert.Zero(t, f.jobStarts, "no job may start after a failed upload")
}

func TestPipeline_JobFailedSurfacesMessageVerbatim(t *testing.T) {
	f := newFakeAPI("FAILED")
	f.errorMessage = "conversion failed: merge pdfs: invalid input"

	p, done := newTestPipeline(t, f, Options{})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))

	err := p.StartProcessing(context.Background(), "merge", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobFailed)

	state := p.State()
	assert.Equal(t, StepError, state.Step)
	assert.Equal(t, f.errorMessage, state.ErrorMessage)
}

func TestPipeline_PollExhaustion(t *testing.T) {
	f := newFakeAPI("PENDING")

	p, done := newTestPipeline(t, f, Options{MaxPollAttempts: 3})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))

	err := p.StartProcessing(context.Background(), "merge", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.NotErrorIs(t, err, ErrJobFailed, "timeout is not a job failure")
	assert.Equal(t, StepError, p.State().Step)
}

func TestPipeline_CancellationStopsPolling(t *testing.T) {
	f := newFakeAPI("PENDING")

	p, done := newTestPipeline(t, f, Options{PollInterval: time.Hour})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.StartProcessing(ctx, "merge", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_FileMutationGuards(t *testing.T) {
	p := NewPipeline(nil, Options{MaxFiles: 2})

	t.Run("cap enforced", func(t *testing.T) {
		err := p.AddFiles(File{Name: "a"}, File{Name: "b"}, File{Name: "c"})
		assert.ErrorIs(t, err, ErrTooManyFiles)
		assert.Empty(t, p.State().Files)
	})

	t.Run("rejected while processing", func(t *testing.T) {
		require.NoError(t, p.AddFiles(File{Name: "a"}))
		p.mu.Lock()
		p.state.Step = StepProcessing
		p.mu.Unlock()

		assert.ErrorIs(t, p.AddFiles(File{Name: "b"}), ErrProcessingInProgress)
		assert.ErrorIs(t, p.RemoveFile("a"), ErrProcessingInProgress)
		assert.Len(t, p.State().Files, 1)
	})
}

func TestPipeline_CanSubmit(t *testing.T) {
	p := NewPipeline(nil, Options{})

	assert.False(t, p.CanSubmit("merge"), "no files selected")

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}))
	assert.False(t, p.CanSubmit("merge"), "merge needs two files")
	assert.True(t, p.CanSubmit("compress"))

	require.NoError(t, p.AddFiles(File{Name: "b.pdf"}))
	assert.True(t, p.CanSubmit("merge"))

	assert.False(t, p.CanSubmit("rotate"), "unknown tool")

	p.mu.Lock()
	p.state.Step = StepProcessing
	p.mu.Unlock()
	assert.False(t, p.CanSubmit("merge"), "no submission during a run")
}

func TestPipeline_StartProcessingArityGuard(t *testing.T) {
	f := newFakeAPI("PENDING")
	p, done := newTestPipeline(t, f, Options{})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}))

	err := p.StartProcessing(context.Background(), "merge", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEnoughFiles)
	assert.Zero(t, f.jobStarts)
}

func TestPipeline_RetryKeepsFiles(t *testing.T) {
	f := newFakeAPI("FAILED")
	f.errorMessage = "transient worker crash"

	p, done := newTestPipeline(t, f, Options{})
	defer done()

	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))
	require.Error(t, p.StartProcessing(context.Background(), "merge", ""))
	require.Equal(t, StepError, p.State().Step)

	// The backend recovers; the next run completes
	f.mu.Lock()
	f.statuses = []string{"COMPLETED"}
	f.statusIdx = 0
	f.mu.Unlock()

	require.NoError(t, p.Retry(context.Background(), "merge", ""))

	state := p.State()
	assert.Equal(t, StepDownload, state.Step)
	assert.Len(t, state.Files, 2)
	assert.Equal(t, 2, f.jobStarts)
}

func TestPipeline_Reset(t *testing.T) {
	p := NewPipeline(nil, Options{})
	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}))

	p.Reset()

	state := p.State()
	assert.Equal(t, StepUpload, state.Step)
	assert.Empty(t, state.Files)
	assert.Empty(t, state.JobID)
	assert.Empty(t, state.ErrorMessage)
}

func TestPipeline_AlreadyProcessing(t *testing.T) {
	p := NewPipeline(nil, Options{})
	require.NoError(t, p.AddFiles(File{Name: "a.pdf"}, File{Name: "b.pdf"}))

	p.mu.Lock()
	p.state.Step = StepProcessing
	p.mu.Unlock()

	err := p.StartProcessing(context.Background(), "merge", "")
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
}

func ExamplePipeline() {
	api, _ := NewClient("http://localhost:8080")
	p := NewPipeline(api, Options{OnTransition: func(s State) {
		fmt.Printf("step=%s progress=%d\n", s.Step, s.Progress)
	}})

	_ = p.AddFiles(
		File{Name: "chapter-1.pdf", Data: []byte("...")},
		File{Name: "chapter-2.pdf", Data: []byte("...")},
	)

	if p.CanSubmit("merge") {
		_ = p.StartProcessing(context.Background(), "merge", "")
	}
}
