package domain

// Job represents a claimed conversion job as the worker sees it
type Job struct {
	ID               string
	ToolType         string
	InputFiles       []string
	CompressionLevel string
	Status           string
	WorkerID         string
	RetryCount       int
	MaxRetries       int
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
