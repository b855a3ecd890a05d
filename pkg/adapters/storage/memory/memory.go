package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

// Store is an in-memory task repository and record store. It backs tests
// and single-process deployments without Redis.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*domain.Workspace
	tasks      map[string]*domain.Task
	records    map[string][]*domain.ExecutionRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		workspaces: make(map[string]*domain.Workspace),
		tasks:      make(map[string]*domain.Task),
		records:    make(map[string][]*domain.ExecutionRecord),
	}
}

// CreateWorkspace stores a workspace keyed by its unique key.
func (s *Store) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[ws.Key]; ok {
		return fmt.Errorf("workspace %s already exists", ws.Key)
	}
	cp := *ws
	s.workspaces[ws.Key] = &cp
	return nil
}

// GetWorkspace retrieves a workspace by key.
func (s *Store) GetWorkspace(ctx context.Context, key string) (*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[key]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", key, domain.ErrNotFound)
	}
	cp := *ws
	return &cp, nil
}

// ListWorkspaces returns all workspaces ordered by key.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		cp := *ws
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// CreateTask stores a task. Its workspace must exist and its dependencies
// must reference existing tasks in the same workspace.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[task.WorkspaceKey]; !ok {
		return fmt.Errorf("workspace %s: %w", task.WorkspaceKey, domain.ErrNotFound)
	}
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	for _, dep := range task.Dependencies {
		if dep == task.ID {
			return fmt.Errorf("task %s depends on itself", task.ID)
		}
		depTask, ok := s.tasks[dep]
		if !ok {
			return fmt.Errorf("dependency %s: %w", dep, domain.ErrNotFound)
		}
		if depTask.WorkspaceKey != task.WorkspaceKey {
			return fmt.Errorf("dependency %s belongs to workspace %s", dep, depTask.WorkspaceKey)
		}
	}

	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return task.Clone(), nil
}

// ListByWorkspace returns all tasks of a workspace ordered by creation time.
func (s *Store) ListByWorkspace(ctx context.Context, workspaceKey string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(workspaceKey, ""), nil
}

// ListPending returns a workspace's pending tasks ordered by creation time.
func (s *Store) ListPending(ctx context.Context, workspaceKey string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(workspaceKey, domain.TaskStatusPending), nil
}

func (s *Store) listLocked(workspaceKey string, status domain.TaskStatus) []*domain.Task {
	out := make([]*domain.Task, 0)
	for _, task := range s.tasks {
		if task.WorkspaceKey != workspaceKey {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListDependencies returns the current state of every task the given task
// depends on.
func (s *Store) ListDependencies(ctx context.Context, id string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}

	deps := make([]*domain.Task, 0, len(task.Dependencies))
	for _, depID := range task.Dependencies {
		dep, ok := s.tasks[depID]
		if !ok {
			return nil, fmt.Errorf("dependency %s: %w", depID, domain.ErrNotFound)
		}
		deps = append(deps, dep.Clone())
	}
	return deps, nil
}

// UpdateStatus persists a status transition with its timestamps.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, startedAt, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	task.Status = status
	task.StartedAt = startedAt
	task.CompletedAt = completedAt
	task.UpdatedAt = time.Now()
	return nil
}

// Append adds a record to the task's append-only attempt log.
func (s *Store) Append(ctx context.Context, taskID string, record *domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	cp := *record
	s.records[taskID] = append(s.records[taskID], &cp)
	return nil
}

// ListRecords returns the task's records in append order.
func (s *Store) ListRecords(ctx context.Context, taskID string) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[taskID]
	out := make([]*domain.ExecutionRecord, 0, len(records))
	for _, r := range records {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}
