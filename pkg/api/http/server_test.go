package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/internal/application/engine"
	"github.com/taskgrid/taskgrid/internal/application/workers"
	eventsmemory "github.com/taskgrid/taskgrid/pkg/adapters/events/memory"
	"github.com/taskgrid/taskgrid/pkg/adapters/metrics/noop"
	storagememory "github.com/taskgrid/taskgrid/pkg/adapters/storage/memory"
	"github.com/taskgrid/taskgrid/pkg/domain"
)

func newTestServer(t *testing.T) (*Server, *storagememory.Store, *workers.Pool) {
	t.Helper()
	store := storagememory.NewStore()
	bus := eventsmemory.NewBus()
	metrics := noop.NewCollector()
	logger := zap.NewNop()

	exec := engine.NewExecutor(store, store, bus, metrics, logger, engine.RetryPolicy{MaxRetries: 0})
	runner := engine.NewRunner(store, exec, metrics, logger, 2)
	pool := workers.NewPool(1, 4, runner, metrics, logger, time.Minute)
	if err := pool.Start(); err != nil {
		t.Fatalf("pool.Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	work := func(ctx context.Context, task *domain.Task) (string, error) {
		return "ok", nil
	}

	srv := NewServer(&Config{
		Port:       0,
		Repository: store,
		Records:    store,
		Executor:   exec,
		Pool:       pool,
		Work:       work,
		Logger:     logger,
	})
	return srv, store, pool
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func createWorkspace(t *testing.T, srv *Server, key string) {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/v1/workspaces", CreateWorkspaceRequest{Key: key, Name: key})
	if w.Code != http.StatusCreated {
		t.Fatalf("create workspace: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func createTask(t *testing.T, srv *Server, key, title string, deps ...string) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		WorkspaceKey: key,
		Title:        title,
		Dependencies: deps,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status = %d, body = %s", w.Code, w.Body.String())
	}
	var task domain.Task
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return task.ID
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestWorkspaceEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")

	// Duplicate key conflicts.
	w := doJSON(t, srv, http.MethodPost, "/api/v1/workspaces", CreateWorkspaceRequest{Key: "ws"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate workspace: status = %d, want 409", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/workspaces/ws", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get workspace: status = %d, want 200", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/workspaces/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing workspace: status = %d, want 404", w.Code)
	}
}

func TestCreateTaskEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")

	id := createTask(t, srv, "ws", "first")

	// Missing required fields.
	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{WorkspaceKey: "ws"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing title: status = %d, want 400", w.Code)
	}

	// Unknown workspace.
	w = doJSON(t, srv, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{WorkspaceKey: "nope", Title: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown workspace: status = %d, want 404", w.Code)
	}

	// Unknown dependency.
	w = doJSON(t, srv, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		WorkspaceKey: "ws",
		Title:        "x",
		Dependencies: []string{"missing"},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown dependency: status = %d, want 404", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/tasks/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get task: status = %d, want 200", w.Code)
	}
}

// cyclicRepo reports a cyclic pending set, which the store's creation-time
// validation normally prevents, to exercise the API's cycle response.
type cyclicRepo struct {
	*storagememory.Store
}

func (r *cyclicRepo) ListPending(ctx context.Context, workspaceKey string) ([]*domain.Task, error) {
	return []*domain.Task{
		{ID: "a", WorkspaceKey: workspaceKey, Status: domain.TaskStatusPending, Dependencies: []string{"b"}},
		{ID: "b", WorkspaceKey: workspaceKey, Status: domain.TaskStatusPending, Dependencies: []string{"a"}},
	}, nil
}

func TestExecuteWorkspaceReportsCycle(t *testing.T) {
	store := storagememory.NewStore()
	repo := &cyclicRepo{Store: store}
	bus := eventsmemory.NewBus()
	metrics := noop.NewCollector()
	logger := zap.NewNop()

	exec := engine.NewExecutor(repo, store, bus, metrics, logger, engine.RetryPolicy{MaxRetries: 0})
	runner := engine.NewRunner(repo, exec, metrics, logger, 2)
	pool := workers.NewPool(1, 4, runner, metrics, logger, time.Minute)

	srv := NewServer(&Config{
		Repository: repo,
		Records:    store,
		Executor:   exec,
		Pool:       pool,
		Logger:     logger,
	})

	if err := store.CreateWorkspace(context.Background(), &domain.Workspace{Key: "ws"}); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	w := doJSON(t, srv, http.MethodPost, "/api/v1/workspaces/ws/execute", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != "CYCLE_DETECTED" {
		t.Errorf("error code = %s, want CYCLE_DETECTED", resp.Error.Code)
	}
}

func TestExecuteWorkspaceEnqueues(t *testing.T) {
	srv, store, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")
	first := createTask(t, srv, "ws", "first")
	createTask(t, srv, "ws", "second", first)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/workspaces/ws/execute", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ExecuteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.TaskIDs) != 2 || resp.TaskIDs[0] != first {
		t.Errorf("TaskIDs = %v, want [%s <second>]", resp.TaskIDs, first)
	}

	// The run executes asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.GetTask(context.Background(), first)
		if err != nil {
			t.Fatalf("GetTask() error = %v", err)
		}
		if task.Status == domain.TaskStatusDone {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not complete")
}

func TestExecuteWorkspaceNoPendingTasks(t *testing.T) {
	srv, _, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")

	w := doJSON(t, srv, http.MethodPost, "/api/v1/workspaces/ws/execute", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestResubmitEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")
	id := createTask(t, srv, "ws", "task")

	// Resubmitting a pending task conflicts.
	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/"+id+"/resubmit", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("resubmit pending: status = %d, want 409", w.Code)
	}

	// Force the task to failed, then resubmit.
	ctx := context.Background()
	now := time.Now()
	if err := store.UpdateStatus(ctx, id, domain.TaskStatusFailed, &now, &now); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	w = doJSON(t, srv, http.MethodPost, "/api/v1/tasks/"+id+"/resubmit", nil)
	if w.Code != http.StatusOK {
		t.Errorf("resubmit failed task: status = %d, body = %s", w.Code, w.Body.String())
	}

	task, _ := store.GetTask(ctx, id)
	if task.Status != domain.TaskStatusPending {
		t.Errorf("status after resubmit = %s, want pending", task.Status)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/v1/tasks/missing/resubmit", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("resubmit missing: status = %d, want 404", w.Code)
	}
}

func TestWorkspaceMetricsEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")
	id := createTask(t, srv, "ws", "task")

	ctx := context.Background()
	record := &domain.ExecutionRecord{
		ID:       "r1",
		TaskID:   id,
		Outcome:  domain.OutcomeSuccess,
		Duration: 2 * time.Second,
	}
	if err := store.Append(ctx, id, record); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/workspaces/ws/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var metrics WorkspaceMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if metrics.TotalTasks != 1 {
		t.Errorf("TotalTasks = %d, want 1", metrics.TotalTasks)
	}
	if metrics.ExecutionResults[string(domain.OutcomeSuccess)] != 1 {
		t.Errorf("ExecutionResults = %v, want one success", metrics.ExecutionResults)
	}
	if metrics.TotalDuration != 2 {
		t.Errorf("TotalDuration = %v, want 2", metrics.TotalDuration)
	}
}

func TestListRecordsEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	createWorkspace(t, srv, "ws")
	id := createTask(t, srv, "ws", "task")

	if err := store.Append(context.Background(), id, &domain.ExecutionRecord{ID: "r1", TaskID: id}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/"+id+"/records", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/tasks/missing/records", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing task records: status = %d, want 404", w.Code)
	}
}
