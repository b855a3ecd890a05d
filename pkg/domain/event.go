package domain

import "time"

// Event is a task status-change notification published to the event bus.
// The engine publishes one event per attempt and per terminal transition;
// an event is only emitted after its corresponding state has been recorded.
type Event struct {
	ID           string     `json:"id"`
	WorkspaceKey string     `json:"workspace_key"`
	TaskID       string     `json:"task_id"`
	OldStatus    TaskStatus `json:"old_status"`
	NewStatus    TaskStatus `json:"new_status"`
	Attempt      int        `json:"attempt"`
	Timestamp    time.Time  `json:"timestamp"`

	// Output carries attempt output on success, Error the failure text.
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}
