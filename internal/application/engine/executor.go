package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/pkg/domain"
	"github.com/taskgrid/taskgrid/pkg/ports"
)

// RetryPolicy configures the executor's retry loop. It is passed in
// explicitly rather than read from ambient state so tests can inject
// deterministic policies.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt
	// (MaxRetries+1 attempts total).
	MaxRetries int

	// BackoffBase and BackoffCap bound the exponential delay between
	// attempts: base * 2^attempt, capped.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// AttemptTimeout bounds the wall time of a single attempt.
	// Zero means unbounded.
	AttemptTimeout time.Duration

	// NewBackOff overrides the default exponential policy. Tests inject
	// backoff.ZeroBackOff here for zero-delay retries.
	NewBackOff func() backoff.BackOff
}

// DefaultRetryPolicy mirrors the historical defaults: 3 retries, 1s base
// delay doubling up to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffCap:  30 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	if p.NewBackOff != nil {
		return p.NewBackOff()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BackoffBase
	bo.MaxInterval = p.BackoffCap
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Executor drives a single task from pending to a terminal state. Every
// attempt produces one execution record; status, record and event for an
// attempt boundary are applied under a per-task lock so no observer sees
// one without the others.
type Executor struct {
	repo    ports.TaskRepository
	records ports.RecordStore
	events  ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger
	policy  RetryPolicy

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor creates an executor with the given collaborators and policy.
func NewExecutor(
	repo ports.TaskRepository,
	records ports.RecordStore,
	events ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	policy RetryPolicy,
) *Executor {
	return &Executor{
		repo:    repo,
		records: records,
		events:  events,
		metrics: metrics,
		logger:  logger,
		policy:  policy,
		locks:   make(map[string]*sync.Mutex),
	}
}

// taskLock returns the mutex serializing writes for one task.
func (e *Executor) taskLock(taskID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[taskID] = l
	}
	return l
}

// Execute runs the task's unit of work with retry-on-failure and returns
// the terminal execution record. Structural errors (unknown task, unmet
// dependency, illegal transition, persistence failure) are returned;
// ordinary attempt failures are absorbed by the retry loop and reported
// through the terminal failed status and record.
func (e *Executor) Execute(ctx context.Context, taskID string, work ports.WorkUnit) (*domain.ExecutionRecord, error) {
	lock := e.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	deps, err := e.repo.ListDependencies(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies for %s: %w", taskID, err)
	}
	for _, dep := range deps {
		if dep.Status != domain.TaskStatusDone {
			return nil, &domain.DependencyNotSatisfiedError{
				TaskID:       taskID,
				DependencyID: dep.ID,
				Status:       dep.Status,
			}
		}
	}

	if err := Start(task, time.Now()); err != nil {
		return nil, err
	}
	if err := e.repo.UpdateStatus(ctx, task.ID, task.Status, task.StartedAt, task.CompletedAt); err != nil {
		return nil, fmt.Errorf("persist running status for %s: %w", taskID, err)
	}
	e.publishEvent(ctx, task, domain.TaskStatusPending, domain.TaskStatusRunning, 0, "", "")

	e.logger.Info("task execution started",
		zap.String("task_id", task.ID),
		zap.String("workspace", task.WorkspaceKey),
		zap.Int("max_retries", e.policy.MaxRetries))

	bo := e.policy.backOff()

	for attempt := 0; ; attempt++ {
		started := time.Now()
		output, workErr := e.runAttempt(ctx, task, work)
		completed := time.Now()

		record := &domain.ExecutionRecord{
			ID:          uuid.New().String(),
			TaskID:      task.ID,
			Attempt:     attempt,
			RetryCount:  attempt,
			Duration:    completed.Sub(started),
			StartedAt:   started,
			CompletedAt: completed,
		}

		if workErr == nil {
			record.Outcome = domain.OutcomeSuccess
			record.Output = output
			if err := e.records.Append(ctx, task.ID, record); err != nil {
				return nil, fmt.Errorf("append record for %s: %w", taskID, err)
			}
			if err := Complete(task, completed); err != nil {
				return nil, err
			}
			if err := e.repo.UpdateStatus(ctx, task.ID, task.Status, task.StartedAt, task.CompletedAt); err != nil {
				return nil, fmt.Errorf("persist done status for %s: %w", taskID, err)
			}
			e.publishEvent(ctx, task, domain.TaskStatusRunning, domain.TaskStatusDone, attempt, output, "")
			e.metrics.RecordTaskExecuted(string(domain.TaskStatusDone), task.Duration())

			e.logger.Info("task completed",
				zap.String("task_id", task.ID),
				zap.Int("attempt", attempt),
				zap.Duration("duration", record.Duration))
			return record, nil
		}

		record.Outcome = domain.OutcomeFailure
		record.Error = workErr.Error()
		if err := e.records.Append(ctx, task.ID, record); err != nil {
			return nil, fmt.Errorf("append record for %s: %w", taskID, err)
		}

		retriesLeft := attempt < e.policy.MaxRetries && ctx.Err() == nil
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			retriesLeft = false
		}

		if !retriesLeft {
			return record, e.finalizeFailure(ctx, task, record)
		}

		// Status stays running across retries; the attempt event keeps
		// observers current on the retry count.
		e.publishEvent(ctx, task, domain.TaskStatusRunning, domain.TaskStatusRunning, attempt, "", record.Error)
		e.metrics.RecordRetry()

		e.logger.Info("task attempt failed, retrying",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.String("error", record.Error))

		select {
		case <-ctx.Done():
			// Run aborted mid-backoff: finalize as failed without
			// starting another attempt.
			return record, e.finalizeFailure(ctx, task, record)
		case <-time.After(wait):
		}
	}
}

// finalizeFailure transitions the task to failed after its last attempt's
// record has been appended.
func (e *Executor) finalizeFailure(ctx context.Context, task *domain.Task, record *domain.ExecutionRecord) error {
	if err := Fail(task, record.CompletedAt); err != nil {
		return err
	}
	if err := e.repo.UpdateStatus(ctx, task.ID, task.Status, task.StartedAt, task.CompletedAt); err != nil {
		return fmt.Errorf("persist failed status for %s: %w", task.ID, err)
	}
	e.publishEvent(ctx, task, domain.TaskStatusRunning, domain.TaskStatusFailed, record.Attempt, "", record.Error)
	e.metrics.RecordTaskExecuted(string(domain.TaskStatusFailed), task.Duration())

	e.logger.Warn("task failed, retries exhausted",
		zap.String("task_id", task.ID),
		zap.Int("attempts", record.Attempt+1),
		zap.String("error", record.Error))
	return nil
}

// Resubmit resets a failed task to pending for another execution pass,
// leaving its execution records intact.
func (e *Executor) Resubmit(ctx context.Context, taskID string) error {
	lock := e.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task %s: %w", taskID, err)
	}
	if err := Resubmit(task, time.Now()); err != nil {
		return err
	}
	if err := e.repo.UpdateStatus(ctx, task.ID, task.Status, task.StartedAt, task.CompletedAt); err != nil {
		return fmt.Errorf("persist pending status for %s: %w", taskID, err)
	}
	e.publishEvent(ctx, task, domain.TaskStatusFailed, domain.TaskStatusPending, 0, "", "")

	e.logger.Info("task resubmitted", zap.String("task_id", task.ID))
	return nil
}

func (e *Executor) runAttempt(ctx context.Context, task *domain.Task, work ports.WorkUnit) (string, error) {
	if e.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.policy.AttemptTimeout)
		defer cancel()
	}
	return work(ctx, task)
}

func (e *Executor) publishEvent(ctx context.Context, task *domain.Task, old, new domain.TaskStatus, attempt int, output, errText string) {
	event := domain.Event{
		ID:           uuid.New().String(),
		WorkspaceKey: task.WorkspaceKey,
		TaskID:       task.ID,
		OldStatus:    old,
		NewStatus:    new,
		Attempt:      attempt,
		Timestamp:    time.Now(),
		Output:       output,
		Error:        errText,
	}

	if err := e.events.Publish(ctx, task.WorkspaceKey, event); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("task_id", task.ID),
			zap.String("new_status", string(new)),
			zap.Error(err))
	}
}
