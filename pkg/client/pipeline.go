package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Pipeline defaults
const (
	DefaultMaxFiles        = 20
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 300
)

var (
	// ErrProcessingInProgress is returned by file mutations while a run is active
	ErrProcessingInProgress = errors.New("cannot modify files while processing")

	// ErrTooManyFiles is returned when a selection would exceed the cap
	ErrTooManyFiles = errors.New("too many files")

	// ErrNotEnoughFiles is returned when the selection is below the tool minimum
	ErrNotEnoughFiles = errors.New("not enough files for this tool")

	// ErrAlreadyProcessing is returned when a run is started on top of another
	ErrAlreadyProcessing = errors.New("a run is already in progress")

	// ErrJobFailed is returned when the job itself reports FAILED
	ErrJobFailed = errors.New("job failed")

	// ErrPollTimeout is returned when polling exhausts its attempt budget.
	// Distinct from ErrJobFailed: the job may still finish later.
	ErrPollTimeout = errors.New("timed out waiting for job to finish")
)

// minFilesPerTool mirrors the server-side arity rules so obviously invalid
// submissions never leave the client
var minFilesPerTool = map[string]int{
	"merge":      2,
	"compress":   1,
	"reduce":     1,
	"jpg-to-pdf": 1,
}

// Options tunes a Pipeline. Zero values take the defaults above.
type Options struct {
	MaxFiles        int
	PollInterval    time.Duration
	MaxPollAttempts int

	// OnTransition, when set, is called with a snapshot after every state
	// change. Called outside the pipeline lock.
	OnTransition func(State)
}

// Pipeline drives the sequential upload, confirm, submit, poll, download flow
// and owns the client-side state machine. Safe for concurrent use.
type Pipeline struct {
	api  *Client
	opts Options

	mu    sync.Mutex
	state State
}

// NewPipeline creates a pipeline over the given API client
func NewPipeline(api *Client, opts Options) *Pipeline {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = DefaultMaxPollAttempts
	}

	return &Pipeline{
		api:   api,
		opts:  opts,
		state: NewState(),
	}
}

// State returns a snapshot of the current pipeline state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() State {
	s := p.state
	s.Files = append([]File(nil), p.state.Files...)
	return s
}

// apply reduces an event into the state and notifies the transition hook
func (p *Pipeline) apply(e Event) {
	p.mu.Lock()
	p.state = Reduce(p.state, e)
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	if p.opts.OnTransition != nil {
		p.opts.OnTransition(snapshot)
	}
}

// AddFiles appends files to the selection. Rejected while a run is in
// progress, and when the selection would exceed the cap.
func (p *Pipeline) AddFiles(files ...File) error {
	p.mu.Lock()
	if p.state.Step == StepProcessing {
		p.mu.Unlock()
		return ErrProcessingInProgress
	}
	if len(p.state.Files)+len(files) > p.opts.MaxFiles {
		p.mu.Unlock()
		return fmt.Errorf("%w: limit is %d", ErrTooManyFiles, p.opts.MaxFiles)
	}
	p.mu.Unlock()

	p.apply(FilesAdded{Files: files})
	return nil
}

// RemoveFile drops a file from the selection by name. Removing an absent file
// is a no-op; removing during a run is rejected.
func (p *Pipeline) RemoveFile(name string) error {
	p.mu.Lock()
	if p.state.Step == StepProcessing {
		p.mu.Unlock()
		return ErrProcessingInProgress
	}
	p.mu.Unlock()

	p.apply(FileRemoved{Name: name})
	return nil
}

// CanSubmit reports whether a run may start for the given tool: the selection
// meets the tool's minimum and no run is active. Unknown tools never submit.
func (p *Pipeline) CanSubmit(toolType string) bool {
	min, ok := minFilesPerTool[toolType]
	if !ok {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.state.Files) >= min && p.state.Step != StepProcessing
}

// StartProcessing runs the full flow: upload and confirm every file in order,
// submit the job, poll until it finishes, fetch the download URL. Any failure
// aborts the whole run into the error step; nothing is retried automatically.
func (p *Pipeline) StartProcessing(ctx context.Context, toolType, compressionLevel string) error {
	p.mu.Lock()
	if p.state.Step == StepProcessing {
		p.mu.Unlock()
		return ErrAlreadyProcessing
	}
	min, ok := minFilesPerTool[toolType]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("unknown tool type %q", toolType)
	}
	if len(p.state.Files) < min {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q needs at least %d, have %d", ErrNotEnoughFiles, toolType, min, len(p.state.Files))
	}
	files := append([]File(nil), p.state.Files...)
	p.mu.Unlock()

	p.apply(ProcessingStarted{})

	// Upload phase: presign, PUT, confirm, one file at a time. A failure on
	// any file means zero jobs are started.
	fileKeys := make([]string, 0, len(files))
	for _, f := range files {
		contentType := InferContentType(f.Name, f.Type)

		presigned, err := p.api.GetPresignedURL(ctx, f.Name, contentType, int64(len(f.Data)))
		if err != nil {
			return p.failRun(fmt.Errorf("presign failed for %s: %w", f.Name, err))
		}

		if err := p.api.UploadFile(ctx, presigned.UploadURL, f.Data, contentType); err != nil {
			return p.failRun(fmt.Errorf("upload failed for %s: %w", f.Name, err))
		}

		if _, err := p.api.ConfirmUpload(ctx, presigned.FileKey); err != nil {
			return p.failRun(fmt.Errorf("confirm failed for %s: %w", f.Name, err))
		}

		p.apply(FileUploaded{Name: f.Name, Key: presigned.FileKey})
		fileKeys = append(fileKeys, presigned.FileKey)
	}

	p.apply(UploadsConfirmed{})

	jobID, err := p.api.StartJob(ctx, toolType, fileKeys, compressionLevel)
	if err != nil {
		return p.failRun(fmt.Errorf("job submission failed: %w", err))
	}

	p.apply(JobSubmitted{JobID: jobID})

	return p.pollUntilDone(ctx, jobID)
}

// pollUntilDone polls the job status on a fixed interval until the job reaches
// a terminal state, the attempt budget runs out, or ctx is canceled
func (p *Pipeline) pollUntilDone(ctx context.Context, jobID string) error {
	sawProcessing := false

	for attempt := 0; attempt < p.opts.MaxPollAttempts; attempt++ {
		status, err := p.api.GetJobStatus(ctx, jobID)
		if err != nil {
			return p.failRun(fmt.Errorf("status poll failed: %w", err))
		}

		switch status.Status {
		case "PROCESSING":
			if !sawProcessing {
				sawProcessing = true
				p.apply(JobProcessing{})
			}

		case "COMPLETED":
			download, err := p.api.GetDownloadURL(ctx, jobID)
			if err != nil {
				return p.failRun(fmt.Errorf("download url request failed: %w", err))
			}
			p.apply(JobCompleted{DownloadURL: download.DownloadURL, FileName: download.FileName})
			return nil

		case "FAILED":
			// The server's error message is surfaced verbatim
			p.apply(JobFailed{Message: status.ErrorMessage})
			return fmt.Errorf("%w: %s", ErrJobFailed, status.ErrorMessage)
		}

		select {
		case <-time.After(p.opts.PollInterval):
		case <-ctx.Done():
			return p.failRun(fmt.Errorf("canceled while polling: %w", ctx.Err()))
		}
	}

	err := fmt.Errorf("%w: gave up after %d attempts", ErrPollTimeout, p.opts.MaxPollAttempts)
	p.apply(JobFailed{Message: err.Error()})
	return err
}

// failRun moves the pipeline to the error step and returns the cause
func (p *Pipeline) failRun(cause error) error {
	p.apply(JobFailed{Message: cause.Error()})
	return cause
}

// Retry re-enters the upload step keeping the selected files and re-runs the
// full flow
func (p *Pipeline) Retry(ctx context.Context, toolType, compressionLevel string) error {
	p.apply(RetryRequested{})
	return p.StartProcessing(ctx, toolType, compressionLevel)
}

// Reset clears the selection, job id, download URL, and error
func (p *Pipeline) Reset() {
	p.apply(ResetRequested{})
}
