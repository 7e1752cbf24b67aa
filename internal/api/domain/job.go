package domain

import (
	"errors"
	"fmt"
)

// Job status values. PENDING is entered on creation, PROCESSING when a worker
// claims the job. COMPLETED and FAILED are terminal.
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// Tool types form a closed enumeration
const (
	ToolMerge    = "merge"
	ToolCompress = "compress"
	ToolReduce   = "reduce"
	ToolJPGToPDF = "jpg-to-pdf"
)

// Compression levels for compress/reduce tools
const (
	CompressionLow    = "low"
	CompressionMedium = "medium"
	CompressionHigh   = "high"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrUnknownToolType = errors.New("unknown tool type")
)

// minInputFiles maps each tool to its minimum input arity
var minInputFiles = map[string]int{
	ToolMerge:    2,
	ToolCompress: 1,
	ToolReduce:   1,
	ToolJPGToPDF: 1,
}

// resultFileNames maps each tool to the file name its result is served under
var resultFileNames = map[string]string{
	ToolMerge:    "merged-document.pdf",
	ToolCompress: "compressed-image.jpg",
	ToolReduce:   "reduced-document.pdf",
	ToolJPGToPDF: "converted-document.pdf",
}

// MinInputFiles returns the minimum number of input files for a tool
func MinInputFiles(toolType string) (int, error) {
	min, ok := minInputFiles[toolType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownToolType, toolType)
	}
	return min, nil
}

// ValidateToolInput checks tool-specific arity. merge requires at least two
// inputs; reduce exactly one; the rest at least one.
func ValidateToolInput(toolType string, fileCount int) error {
	min, err := MinInputFiles(toolType)
	if err != nil {
		return err
	}

	if fileCount < min {
		return fmt.Errorf("tool %q requires at least %d input file(s), got %d", toolType, min, fileCount)
	}

	if toolType == ToolReduce && fileCount != 1 {
		return fmt.Errorf("tool %q requires exactly one input file, got %d", toolType, fileCount)
	}

	return nil
}

// UsesCompressionLevel reports whether the tool honors a compression level
func UsesCompressionLevel(toolType string) bool {
	return toolType == ToolCompress || toolType == ToolReduce
}

// ValidCompressionLevel reports whether level is a known compression level
func ValidCompressionLevel(level string) bool {
	switch level {
	case CompressionLow, CompressionMedium, CompressionHigh:
		return true
	}
	return false
}

// ResultFileName returns the download file name for a tool's result
func ResultFileName(toolType string) string {
	if name, ok := resultFileNames[toolType]; ok {
		return name
	}
	return "result"
}

// IsTerminal reports whether a job status admits no further transitions
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
