package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/pkg/domain"
)

// Store implements the task repository and record store on Redis. Tasks
// and workspaces are JSON values; execution records are RPUSH-only lists,
// which keeps the attempt log append-only at the storage level. Per-task
// write ordering is guaranteed by the engine's per-task locks.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore creates a Redis-backed store.
func NewStore(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// CreateWorkspace stores a workspace and indexes its key.
func (s *Store) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	ok, err := s.client.SetNX(ctx, workspaceKey(ws.Key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	if !ok {
		return fmt.Errorf("workspace %s already exists", ws.Key)
	}

	if err := s.client.SAdd(ctx, workspaceIndexKey(), ws.Key).Err(); err != nil {
		return fmt.Errorf("failed to index workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by key.
func (s *Store) GetWorkspace(ctx context.Context, key string) (*domain.Workspace, error) {
	data, err := s.client.Get(ctx, workspaceKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("workspace %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	var ws domain.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace: %w", err)
	}
	return &ws, nil
}

// ListWorkspaces returns all workspaces ordered by key.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error) {
	keys, err := s.client.SMembers(ctx, workspaceIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace keys: %w", err)
	}
	sort.Strings(keys)

	out := make([]*domain.Workspace, 0, len(keys))
	for _, key := range keys {
		ws, err := s.GetWorkspace(ctx, key)
		if err != nil {
			continue
		}
		out = append(out, ws)
	}
	return out, nil
}

// CreateTask stores a task and indexes it under its workspace.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	if _, err := s.GetWorkspace(ctx, task.WorkspaceKey); err != nil {
		return err
	}
	for _, dep := range task.Dependencies {
		if dep == task.ID {
			return fmt.Errorf("task %s depends on itself", task.ID)
		}
		depTask, err := s.GetTask(ctx, dep)
		if err != nil {
			return err
		}
		if depTask.WorkspaceKey != task.WorkspaceKey {
			return fmt.Errorf("dependency %s belongs to workspace %s", dep, depTask.WorkspaceKey)
		}
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	ok, err := s.client.SetNX(ctx, taskKey(task.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	if !ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	if err := s.client.SAdd(ctx, taskIndexKey(task.WorkspaceKey), task.ID).Err(); err != nil {
		return fmt.Errorf("failed to index task: %w", err)
	}

	s.logger.Debug("task saved",
		zap.String("task_id", task.ID),
		zap.String("workspace", task.WorkspaceKey))
	return nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	data, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// ListByWorkspace returns all tasks of a workspace ordered by creation time.
func (s *Store) ListByWorkspace(ctx context.Context, workspaceKey string) ([]*domain.Task, error) {
	return s.list(ctx, workspaceKey, "")
}

// ListPending returns a workspace's pending tasks ordered by creation time.
func (s *Store) ListPending(ctx context.Context, workspaceKey string) ([]*domain.Task, error) {
	return s.list(ctx, workspaceKey, domain.TaskStatusPending)
}

func (s *Store) list(ctx context.Context, workspaceKey string, status domain.TaskStatus) ([]*domain.Task, error) {
	ids, err := s.client.SMembers(ctx, taskIndexKey(workspaceKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list task ids: %w", err)
	}

	out := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.GetTask(ctx, id)
		if err != nil {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListDependencies returns the current state of every task the given task
// depends on.
func (s *Store) ListDependencies(ctx context.Context, id string) ([]*domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	deps := make([]*domain.Task, 0, len(task.Dependencies))
	for _, depID := range task.Dependencies {
		dep, err := s.GetTask(ctx, depID)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// UpdateStatus persists a status transition with its timestamps.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, startedAt, completedAt *time.Time) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}

	task.Status = status
	task.StartedAt = startedAt
	task.CompletedAt = completedAt
	task.UpdatedAt = time.Now()

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	s.logger.Debug("task status updated",
		zap.String("task_id", id),
		zap.String("status", string(status)))
	return nil
}

// Append adds a record to the task's append-only attempt log.
func (s *Store) Append(ctx context.Context, taskID string, record *domain.ExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.client.RPush(ctx, recordsKey(taskID), data).Err(); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// ListRecords returns the task's records in append order.
func (s *Store) ListRecords(ctx context.Context, taskID string) ([]*domain.ExecutionRecord, error) {
	items, err := s.client.LRange(ctx, recordsKey(taskID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make([]*domain.ExecutionRecord, 0, len(items))
	for _, item := range items {
		var record domain.ExecutionRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		out = append(out, &record)
	}
	return out, nil
}

func workspaceKey(key string) string {
	return fmt.Sprintf("taskgrid:workspace:%s", key)
}

func workspaceIndexKey() string {
	return "taskgrid:workspaces"
}

func taskKey(id string) string {
	return fmt.Sprintf("taskgrid:task:%s", id)
}

func taskIndexKey(workspaceKey string) string {
	return fmt.Sprintf("taskgrid:workspace:%s:tasks", workspaceKey)
}

func recordsKey(taskID string) string {
	return fmt.Sprintf("taskgrid:records:%s", taskID)
}
