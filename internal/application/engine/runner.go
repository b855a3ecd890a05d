package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/pkg/domain"
	"github.com/taskgrid/taskgrid/pkg/ports"
)

// Runner orchestrates whole-workspace DAG executions. Independent branches
// run concurrently up to the configured parallelism; a task is started only
// after every dependency that is part of the run has reached a terminal
// state and a live repository check shows all its dependencies done.
type Runner struct {
	repo        ports.TaskRepository
	executor    *Executor
	metrics     ports.MetricsCollector
	logger      *zap.Logger
	parallelism int
}

// NewRunner creates a runner. parallelism bounds the number of tasks
// executing at once; values below 1 are treated as 1.
func NewRunner(
	repo ports.TaskRepository,
	executor *Executor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	parallelism int,
) *Runner {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Runner{
		repo:        repo,
		executor:    executor,
		metrics:     metrics,
		logger:      logger,
		parallelism: parallelism,
	}
}

// RunWorkspace executes every pending task of the workspace in dependency
// order. A cycle in the pending subset fails the run before any task is
// executed. A failed task does not abort the run, but every task depending
// on it, directly or transitively, is skipped; the summary reports the
// full transitive closure as skipped.
func (r *Runner) RunWorkspace(ctx context.Context, workspaceKey string, work ports.WorkUnit) (*domain.RunSummary, error) {
	started := time.Now()

	pending, err := r.repo.ListPending(ctx, workspaceKey)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks for %s: %w", workspaceKey, err)
	}

	summary := &domain.RunSummary{WorkspaceKey: workspaceKey}
	if len(pending) == 0 {
		return summary, nil
	}

	order, err := Sort(pending)
	if err != nil {
		return nil, err
	}

	r.metrics.RecordRunStarted()
	r.logger.Info("workspace run started",
		zap.String("workspace", workspaceKey),
		zap.Int("tasks", len(order)),
		zap.Int("parallelism", r.parallelism))

	byID := make(map[string]*domain.Task, len(pending))
	for _, t := range pending {
		byID[t.ID] = t
	}

	// One terminal-notification channel per task in the run. Dependents
	// wait on these, so a dependency's terminal status is always visible
	// before a dependent's readiness check.
	doneCh := make(map[string]chan struct{}, len(order))
	for _, id := range order {
		doneCh[id] = make(chan struct{})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		executed []string
		failed   []string
		skipped  []string
	)
	sem := make(chan struct{}, r.parallelism)

	record := func(bucket *[]string, id string) {
		mu.Lock()
		*bucket = append(*bucket, id)
		mu.Unlock()
	}

	for _, id := range order {
		task := byID[id]
		wg.Add(1)
		go func(task *domain.Task) {
			defer wg.Done()
			defer close(doneCh[task.ID])

			// Wait for in-run dependencies to settle. Dependencies
			// outside the run have no channel; their state is checked
			// live below.
			for _, dep := range task.Dependencies {
				if ch, ok := doneCh[dep]; ok {
					select {
					case <-ch:
					case <-ctx.Done():
						record(&skipped, task.ID)
						r.metrics.RecordTaskSkipped()
						return
					}
				}
			}

			if !r.dependenciesDone(ctx, task) {
				record(&skipped, task.ID)
				r.metrics.RecordTaskSkipped()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			rec, err := r.executor.Execute(ctx, task.ID, work)
			if err != nil {
				// Structural error: a concurrent mutation raced the run.
				// The task was not attempted, so it counts as skipped.
				var depErr *domain.DependencyNotSatisfiedError
				var transErr *domain.InvalidTransitionError
				if !errors.As(err, &depErr) && !errors.As(err, &transErr) {
					r.logger.Error("task execution error",
						zap.String("task_id", task.ID),
						zap.Error(err))
				}
				record(&skipped, task.ID)
				r.metrics.RecordTaskSkipped()
				return
			}

			if rec.Outcome == domain.OutcomeSuccess {
				record(&executed, task.ID)
			} else {
				record(&failed, task.ID)
			}
		}(task)
	}

	wg.Wait()

	sort.Strings(executed)
	sort.Strings(failed)
	sort.Strings(skipped)

	summary.Executed = len(executed)
	summary.Failed = len(failed)
	summary.Skipped = len(skipped)
	summary.ExecutedIDs = executed
	summary.FailedIDs = failed
	summary.SkippedIDs = skipped
	summary.Duration = time.Since(started)

	status := string(domain.TaskStatusDone)
	if summary.Failed > 0 || summary.Skipped > 0 {
		status = string(domain.TaskStatusFailed)
	}
	r.metrics.RecordRunCompleted(status, summary.Duration)

	r.logger.Info("workspace run completed",
		zap.String("workspace", workspaceKey),
		zap.Int("executed", summary.Executed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// ExecuteTask runs a single task outside a full DAG run. Ordering is the
// caller's responsibility; the executor still rejects the call with
// DependencyNotSatisfiedError if any dependency is not done.
func (r *Runner) ExecuteTask(ctx context.Context, taskID string, work ports.WorkUnit) (*domain.ExecutionRecord, error) {
	return r.executor.Execute(ctx, taskID, work)
}

// dependenciesDone checks the live status of every dependency.
func (r *Runner) dependenciesDone(ctx context.Context, task *domain.Task) bool {
	deps, err := r.repo.ListDependencies(ctx, task.ID)
	if err != nil {
		r.logger.Error("failed to list dependencies",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return false
	}
	for _, dep := range deps {
		if dep.Status != domain.TaskStatusDone {
			r.logger.Info("skipping task, dependency not done",
				zap.String("task_id", task.ID),
				zap.String("dependency_id", dep.ID),
				zap.String("dependency_status", string(dep.Status)))
			return false
		}
	}
	return true
}
