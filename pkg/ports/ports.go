// Package ports defines the interfaces between the execution engine and
// its external collaborators (storage, events, metrics). Adapters under
// pkg/adapters provide the implementations.
package ports

import (
	"context"
	"time"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

// TaskRepository persists tasks and workspaces. Reads and writes for a
// single task must be linearizable: the engine serializes writers per
// task, and a read issued after a status update must observe it.
type TaskRepository interface {
	CreateWorkspace(ctx context.Context, ws *domain.Workspace) error
	GetWorkspace(ctx context.Context, key string) (*domain.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error)

	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListByWorkspace(ctx context.Context, workspaceKey string) ([]*domain.Task, error)
	ListPending(ctx context.Context, workspaceKey string) ([]*domain.Task, error)

	// ListDependencies returns the current state of every task the given
	// task depends on.
	ListDependencies(ctx context.Context, id string) ([]*domain.Task, error)

	// UpdateStatus persists a status transition together with its
	// timestamps. Nil pointers clear the corresponding field.
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, startedAt, completedAt *time.Time) error
}

// RecordStore is the append-only log of execution attempts per task.
type RecordStore interface {
	Append(ctx context.Context, taskID string, record *domain.ExecutionRecord) error
	ListRecords(ctx context.Context, taskID string) ([]*domain.ExecutionRecord, error)
}

// EventHandler processes a single event delivered by the bus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus carries task status-change events. Publish is fire-and-forget
// from the engine's point of view; delivery guarantees belong to the
// implementation. Subscribe delivers events for one workspace until the
// context is cancelled.
type EventBus interface {
	Publish(ctx context.Context, workspaceKey string, event domain.Event) error
	Subscribe(ctx context.Context, workspaceKey string, handler EventHandler) error
	Close() error
}

// WorkUnit performs the actual work of one attempt. The engine does not
// inspect task semantics; it only routes the returned outcome.
type WorkUnit func(ctx context.Context, task *domain.Task) (output string, err error)

// MetricsCollector records engine metrics.
type MetricsCollector interface {
	RecordRunStarted()
	RecordRunCompleted(status string, duration time.Duration)
	RecordTaskExecuted(status string, duration time.Duration)
	RecordTaskSkipped()
	RecordRetry()
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
}
