package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusDegraded  RunStatus = "degraded"
	RunStatusFailed    RunStatus = "failed"
)

// ExtractRun is one pipeline invocation over one listing URL.
type ExtractRun struct {
	ID          int64      `json:"id" db:"id"`
	URL         string     `json:"url" db:"url"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	Status      RunStatus  `json:"status" db:"status"`
	IssuesCount int        `json:"issues_count" db:"issues_count"`
	AIFallbacks int        `json:"ai_fallbacks" db:"ai_fallbacks"`
	ErrorKind   string     `json:"error_kind" db:"error_kind"`
	Error       string     `json:"error" db:"error"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ExtractLog is a persisted log line tied to a run.
type ExtractLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
}
