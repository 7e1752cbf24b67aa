package model

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Job is the durable record of a conversion job
type Job struct {
	ID               string         `db:"id"`
	SessionID        string         `db:"session_id"`
	ToolType         string         `db:"tool_type"`
	Status           string         `db:"status"`
	InputFiles       pq.StringArray `db:"input_files"`
	ResultKey        sql.NullString `db:"result_key"`
	ErrorMessage     sql.NullString `db:"error_message"`
	CompressionLevel sql.NullString `db:"compression_level"`
	WorkerID         sql.NullString `db:"worker_id"`
	RetryCount       int            `db:"retry_count"`
	MaxRetries       int            `db:"max_retries"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	StartedAt        sql.NullTime   `db:"started_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
	LastHeartbeatAt  sql.NullTime   `db:"last_heartbeat_at"`
}
