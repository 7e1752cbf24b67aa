package client

// Step identifies the phase of the conversion flow
type Step string

const (
	StepUpload     Step = "upload"
	StepProcessing Step = "processing"
	StepDownload   Step = "download"
	StepError      Step = "error"
)

// Progress checkpoints. Status reads are snapshots, so a fast job may jump
// from 50 straight to 100.
const (
	ProgressNone       = 0
	ProgressUploaded   = 25
	ProgressSubmitted  = 50
	ProgressProcessing = 75
	ProgressDone       = 100
)

// File is one selected input and its upload bookkeeping
type File struct {
	Name      string
	Type      string // reported MIME type, may be empty
	Data      []byte
	Key       string // storage key, set after presign
	Confirmed bool
}

// State is the full pipeline state. It is a value; Reduce returns a new one
// and never mutates its input.
type State struct {
	Step           Step
	Files          []File
	JobID          string
	Progress       int
	DownloadURL    string
	ResultFileName string
	ErrorMessage   string
}

// NewState returns the initial pipeline state
func NewState() State {
	return State{Step: StepUpload}
}

// Event is one element of the closed event union consumed by Reduce
type Event interface {
	isEvent()
}

// FilesAdded appends files to the selection and clears a prior error
type FilesAdded struct{ Files []File }

// FileRemoved drops a file from the selection by name
type FileRemoved struct{ Name string }

// ProcessingStarted enters the processing step
type ProcessingStarted struct{}

// FileUploaded records the storage key for a confirmed upload
type FileUploaded struct {
	Name string
	Key  string
}

// UploadsConfirmed marks all uploads confirmed (progress 25)
type UploadsConfirmed struct{}

// JobSubmitted records the accepted job (progress 50)
type JobSubmitted struct{ JobID string }

// JobProcessing records the first PROCESSING observation (progress 75)
type JobProcessing struct{}

// JobCompleted ends the flow with a download URL (progress 100)
type JobCompleted struct {
	DownloadURL string
	FileName    string
}

// JobFailed moves the flow to the error step with a message
type JobFailed struct{ Message string }

// RetryRequested re-enters upload keeping the selected files
type RetryRequested struct{}

// ResetRequested clears everything back to the initial state
type ResetRequested struct{}

func (FilesAdded) isEvent()        {}
func (FileRemoved) isEvent()       {}
func (ProcessingStarted) isEvent() {}
func (FileUploaded) isEvent()      {}
func (UploadsConfirmed) isEvent()  {}
func (JobSubmitted) isEvent()      {}
func (JobProcessing) isEvent()     {}
func (JobCompleted) isEvent()      {}
func (JobFailed) isEvent()         {}
func (RetryRequested) isEvent()    {}
func (ResetRequested) isEvent()    {}

// Reduce applies an event to a state and returns the next state. It is total:
// events that make no sense in the current step leave the state unchanged.
// The file mutation guard during processing lives here; the Pipeline methods
// additionally surface it as an error.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case FilesAdded:
		if s.Step == StepProcessing {
			return s
		}
		next := s
		next.Step = StepUpload
		next.Files = append(append([]File(nil), s.Files...), ev.Files...)
		next.ErrorMessage = ""
		next.Progress = ProgressNone
		return next

	case FileRemoved:
		if s.Step == StepProcessing {
			return s
		}
		next := s
		files := make([]File, 0, len(s.Files))
		for _, f := range s.Files {
			if f.Name != ev.Name {
				files = append(files, f)
			}
		}
		next.Files = files
		return next

	case ProcessingStarted:
		next := s
		next.Step = StepProcessing
		next.Progress = ProgressNone
		next.JobID = ""
		next.DownloadURL = ""
		next.ResultFileName = ""
		next.ErrorMessage = ""
		return next

	case FileUploaded:
		next := s
		files := append([]File(nil), s.Files...)
		for i := range files {
			if files[i].Name == ev.Name {
				files[i].Key = ev.Key
				files[i].Confirmed = true
			}
		}
		next.Files = files
		return next

	case UploadsConfirmed:
		next := s
		next.Progress = ProgressUploaded
		return next

	case JobSubmitted:
		next := s
		next.JobID = ev.JobID
		next.Progress = ProgressSubmitted
		return next

	case JobProcessing:
		next := s
		next.Progress = ProgressProcessing
		return next

	case JobCompleted:
		next := s
		next.Step = StepDownload
		next.Progress = ProgressDone
		next.DownloadURL = ev.DownloadURL
		next.ResultFileName = ev.FileName
		return next

	case JobFailed:
		next := s
		next.Step = StepError
		next.ErrorMessage = ev.Message
		return next

	case RetryRequested:
		next := s
		next.Step = StepUpload
		next.Progress = ProgressNone
		next.JobID = ""
		next.DownloadURL = ""
		next.ResultFileName = ""
		next.ErrorMessage = ""
		return next

	case ResetRequested:
		return NewState()
	}

	return s
}
