package domain

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// IsTerminal reports whether the status is terminal (no further
// engine-driven transition).
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// Task is a unit of work owned by a workspace. Dependencies reference
// other task IDs in the same workspace; the full relation must be acyclic.
type Task struct {
	ID           string     `json:"id"`
	WorkspaceKey string     `json:"workspace_key"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	Dependencies []string   `json:"dependencies,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the wall time between start and completion, or zero
// if the task has not completed.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = make([]string, len(t.Dependencies))
		copy(cp.Dependencies, t.Dependencies)
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}

// Workspace is the tenant boundary. Tasks belong to exactly one workspace
// and dependency edges never cross workspaces.
type Workspace struct {
	Key       string    `json:"key"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunSummary is the result of a whole-workspace DAG run. Failed tasks were
// attempted and exhausted their retries; skipped tasks were never attempted
// because a dependency (direct or transitive) did not end done.
type RunSummary struct {
	WorkspaceKey string        `json:"workspace_key"`
	Executed     int           `json:"executed"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	ExecutedIDs  []string      `json:"executed_ids,omitempty"`
	FailedIDs    []string      `json:"failed_ids,omitempty"`
	SkippedIDs   []string      `json:"skipped_ids,omitempty"`
	Duration     time.Duration `json:"duration"`
}
