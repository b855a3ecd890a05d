package domain

import "time"

// Outcome classifies a single execution attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ExecutionRecord is the immutable outcome of one attempt at a task's
// unit of work. The records for a task form an append-only sequence
// ordered by attempt number.
type ExecutionRecord struct {
	ID      string  `json:"id"`
	TaskID  string  `json:"task_id"`
	Attempt int     `json:"attempt"` // 0-based
	Outcome Outcome `json:"outcome"`
	Output  string  `json:"output,omitempty"`
	Error   string  `json:"error,omitempty"`

	// RetryCount is the number of retries already consumed when this
	// record was produced (equal to Attempt for this engine).
	RetryCount int `json:"retry_count"`

	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}
