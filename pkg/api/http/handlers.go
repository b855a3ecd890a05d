package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/internal/application/engine"
	"github.com/taskgrid/taskgrid/internal/application/workers"
	"github.com/taskgrid/taskgrid/pkg/domain"
)

// CreateWorkspaceRequest represents a workspace creation request.
type CreateWorkspaceRequest struct {
	Key  string `json:"key" binding:"required"`
	Name string `json:"name"`
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	WorkspaceKey string   `json:"workspace_key" binding:"required"`
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
}

// ExecuteResponse acknowledges an enqueued execution.
type ExecuteResponse struct {
	Message string   `json:"message"`
	TaskIDs []string `json:"task_ids,omitempty"`
}

// WorkspaceMetrics aggregates execution metrics for one workspace.
type WorkspaceMetrics struct {
	TotalTasks       int            `json:"total_tasks"`
	TasksByStatus    map[string]int `json:"tasks_by_status"`
	ExecutionResults map[string]int `json:"execution_results"`
	TotalDuration    float64        `json:"total_duration_seconds"`
	AvgTaskDuration  float64        `json:"avg_task_duration"`
	TotalRetries     int            `json:"total_retries"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"worker_pool": "ok",
		},
	})
}

// handleCreateWorkspace handles workspace creation.
func (s *Server) handleCreateWorkspace(c *gin.Context) {
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ws := &domain.Workspace{
		Key:       req.Key,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateWorkspace(c.Request.Context(), ws); err != nil {
		s.logger.Error("failed to create workspace", zap.Error(err))
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{Code: "CREATE_FAILED", Message: err.Error()},
		})
		return
	}

	c.JSON(http.StatusCreated, ws)
}

// handleListWorkspaces handles listing workspaces.
func (s *Server) handleListWorkspaces(c *gin.Context) {
	workspaces, err := s.repo.ListWorkspaces(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workspaces": workspaces,
		"total":      len(workspaces),
	})
}

// handleGetWorkspace handles getting workspace details.
func (s *Server) handleGetWorkspace(c *gin.Context) {
	ws, err := s.repo.GetWorkspace(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.notFoundOrError(c, err, "Workspace not found")
		return
	}
	c.JSON(http.StatusOK, ws)
}

// handleListTasks handles listing a workspace's tasks, optionally
// filtered by status.
func (s *Server) handleListTasks(c *gin.Context) {
	key := c.Param("key")
	if _, err := s.repo.GetWorkspace(c.Request.Context(), key); err != nil {
		s.notFoundOrError(c, err, "Workspace not found")
		return
	}

	tasks, err := s.repo.ListByWorkspace(c.Request.Context(), key)
	if err != nil {
		s.internalError(c, err)
		return
	}

	if status := c.Query("status"); status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// handleExecuteWorkspace sorts the workspace's pending tasks and, when
// the graph is acyclic, enqueues a whole-DAG run. A cycle is reported
// synchronously before anything is enqueued.
func (s *Server) handleExecuteWorkspace(c *gin.Context) {
	key := c.Param("key")
	if _, err := s.repo.GetWorkspace(c.Request.Context(), key); err != nil {
		s.notFoundOrError(c, err, "Workspace not found")
		return
	}

	pending, err := s.repo.ListPending(c.Request.Context(), key)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if len(pending) == 0 {
		c.JSON(http.StatusOK, ExecuteResponse{Message: "No pending tasks"})
		return
	}

	order, err := engine.Sort(pending)
	if err != nil {
		var cycleErr *domain.CycleError
		if errors.As(err, &cycleErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "CYCLE_DETECTED",
					Message: cycleErr.Error(),
					Details: cycleErr.Remaining,
				},
			})
			return
		}
		s.internalError(c, err)
		return
	}

	if err := s.pool.Submit(workers.Job{WorkspaceKey: key, Work: s.work}); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{Code: "QUEUE_FULL", Message: err.Error()},
		})
		return
	}

	c.JSON(http.StatusAccepted, ExecuteResponse{
		Message: "Workspace run enqueued",
		TaskIDs: order,
	})
}

// handleWorkspaceMetrics aggregates execution metrics for a workspace.
func (s *Server) handleWorkspaceMetrics(c *gin.Context) {
	key := c.Param("key")
	if _, err := s.repo.GetWorkspace(c.Request.Context(), key); err != nil {
		s.notFoundOrError(c, err, "Workspace not found")
		return
	}

	tasks, err := s.repo.ListByWorkspace(c.Request.Context(), key)
	if err != nil {
		s.internalError(c, err)
		return
	}

	metrics := WorkspaceMetrics{
		TotalTasks: len(tasks),
		TasksByStatus: map[string]int{
			string(domain.TaskStatusPending): 0,
			string(domain.TaskStatusRunning): 0,
			string(domain.TaskStatusDone):    0,
			string(domain.TaskStatusFailed):  0,
		},
		ExecutionResults: map[string]int{
			string(domain.OutcomeSuccess): 0,
			string(domain.OutcomeFailure): 0,
		},
	}

	var durations []float64
	for _, task := range tasks {
		metrics.TasksByStatus[string(task.Status)]++

		records, err := s.records.ListRecords(c.Request.Context(), task.ID)
		if err != nil {
			s.internalError(c, err)
			return
		}
		for _, r := range records {
			metrics.ExecutionResults[string(r.Outcome)]++
			metrics.TotalRetries += r.RetryCount
			d := r.Duration.Seconds()
			metrics.TotalDuration += d
			durations = append(durations, d)
		}
	}
	if len(durations) > 0 {
		metrics.AvgTaskDuration = metrics.TotalDuration / float64(len(durations))
	}

	c.JSON(http.StatusOK, metrics)
}

// handleCreateTask handles task creation.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	now := time.Now()
	task := &domain.Task{
		ID:           uuid.New().String(),
		WorkspaceKey: req.WorkspaceKey,
		Title:        req.Title,
		Description:  req.Description,
		Status:       domain.TaskStatusPending,
		Dependencies: req.Dependencies,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateTask(c.Request.Context(), task); err != nil {
		s.logger.Error("failed to create task", zap.Error(err))
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{Code: "NOT_FOUND", Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{Code: "CREATE_FAILED", Message: err.Error()},
		})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// handleGetTask handles getting task details.
func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.repo.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.notFoundOrError(c, err, "Task not found")
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleListRecords handles listing a task's execution records.
func (s *Server) handleListRecords(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.repo.GetTask(c.Request.Context(), id); err != nil {
		s.notFoundOrError(c, err, "Task not found")
		return
	}

	records, err := s.records.ListRecords(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// handleExecuteTask enqueues a single task for execution.
func (s *Server) handleExecuteTask(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.repo.GetTask(c.Request.Context(), id); err != nil {
		s.notFoundOrError(c, err, "Task not found")
		return
	}

	if err := s.pool.Submit(workers.Job{TaskID: id, Work: s.work}); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{Code: "QUEUE_FULL", Message: err.Error()},
		})
		return
	}

	c.JSON(http.StatusAccepted, ExecuteResponse{Message: "Task enqueued"})
}

// handleResubmitTask resets a failed task to pending.
func (s *Server) handleResubmitTask(c *gin.Context) {
	id := c.Param("id")

	if err := s.executor.Resubmit(c.Request.Context(), id); err != nil {
		var transErr *domain.InvalidTransitionError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.notFoundOrError(c, err, "Task not found")
		case errors.As(err, &transErr):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: ErrorDetail{Code: "INVALID_TRANSITION", Message: err.Error()},
			})
		default:
			s.internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task resubmitted"})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.Error("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("internal error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{Code: "INTERNAL", Message: err.Error()},
	})
}

func (s *Server) notFoundOrError(c *gin.Context, err error, message string) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{Code: "NOT_FOUND", Message: message},
		})
		return
	}
	s.internalError(c, err)
}
