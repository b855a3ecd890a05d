package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/internal/application/engine"
	"github.com/taskgrid/taskgrid/pkg/ports"
)

// Job is one submission on the execution queue: either a whole-workspace
// DAG run (WorkspaceKey set) or a single-task execution (TaskID set).
type Job struct {
	WorkspaceKey string
	TaskID       string
	Work         ports.WorkUnit
}

// Pool manages a pool of worker goroutines consuming the execution queue.
type Pool struct {
	size    int
	runner  *engine.Runner
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	queue   chan Job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine.
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool.
func NewPool(
	size int,
	queueSize int,
	runner *engine.Runner,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan Job, queueSize),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit enqueues a job. It fails rather than blocks when the queue is full.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shut down")
	default:
	}

	select {
	case p.queue <- job:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return fmt.Errorf("execution queue is full")
	}
}

// Shutdown gracefully shuts down the worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers.
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of jobs waiting on the queue.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// run is the main worker loop.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = WorkerStatusStopped
			w.mu.Unlock()
			w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
			return
		case job := <-w.pool.queue:
			w.pool.metrics.SetQueueDepth(len(w.pool.queue))
			w.handle(ctx, job)
		}
	}
}

// handle processes one job off the queue.
func (w *worker) handle(ctx context.Context, job Job) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.mu.Unlock()
	}()

	switch {
	case job.TaskID != "":
		w.pool.logger.Info("executing task",
			zap.String("worker_id", w.id),
			zap.String("task_id", job.TaskID))

		record, err := w.pool.runner.ExecuteTask(ctx, job.TaskID, job.Work)
		if err != nil {
			w.pool.logger.Warn("task execution rejected",
				zap.String("worker_id", w.id),
				zap.String("task_id", job.TaskID),
				zap.Error(err))
			return
		}
		w.pool.logger.Info("task execution finished",
			zap.String("worker_id", w.id),
			zap.String("task_id", job.TaskID),
			zap.String("outcome", string(record.Outcome)),
			zap.Duration("duration", record.Duration))

	case job.WorkspaceKey != "":
		w.pool.logger.Info("executing workspace run",
			zap.String("worker_id", w.id),
			zap.String("workspace", job.WorkspaceKey))

		summary, err := w.pool.runner.RunWorkspace(ctx, job.WorkspaceKey, job.Work)
		if err != nil {
			w.pool.logger.Warn("workspace run rejected",
				zap.String("worker_id", w.id),
				zap.String("workspace", job.WorkspaceKey),
				zap.Error(err))
			return
		}
		w.pool.logger.Info("workspace run finished",
			zap.String("worker_id", w.id),
			zap.String("workspace", job.WorkspaceKey),
			zap.Int("executed", summary.Executed),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped))

	default:
		w.pool.logger.Error("empty job on execution queue",
			zap.String("worker_id", w.id))
	}
}
