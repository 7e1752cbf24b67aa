package domain

// Job status constants
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// Tool type constants
const (
	ToolMerge    = "merge"
	ToolCompress = "compress"
	ToolReduce   = "reduce"
	ToolJPGToPDF = "jpg-to-pdf"
)

// Compression level constants
const (
	CompressionLow    = "low"
	CompressionMedium = "medium"
	CompressionHigh   = "high"
)
